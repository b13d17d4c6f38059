// Package storage guarda los PDF de facturas en disco (afero).
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// PDFStore archiva los PDF bajo un directorio base. Las rutas devueltas son
// relativas a ese directorio y son las que se anotan en el libro.
type PDFStore struct {
	fs afero.Fs
}

// NewDiskPDFStore usa el sistema de archivos real con raíz en dir.
func NewDiskPDFStore(dir string) (*PDFStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("crear directorio de PDF %s: %w", dir, err)
	}
	return NewPDFStore(afero.NewBasePathFs(osFs, dir)), nil
}

// NewPDFStore usa el Fs dado (tests: afero.NewMemMapFs()).
func NewPDFStore(fs afero.Fs) *PDFStore {
	return &PDFStore{fs: fs}
}

// Save escribe el PDF y devuelve su ruta relativa.
func (s *PDFStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("nombre de PDF inválido %q", name)
	}
	p := path.Join("/", name)
	if err := afero.WriteFile(s.fs, p, data, 0o640); err != nil {
		return "", fmt.Errorf("guardar PDF %s: %w", name, err)
	}
	return strings.TrimPrefix(p, "/"), nil
}

// Load lee un PDF previamente guardado.
func (s *PDFStore) Load(_ context.Context, rel string) ([]byte, error) {
	clean := path.Clean("/" + rel)
	b, err := afero.ReadFile(s.fs, clean)
	if err != nil {
		return nil, fmt.Errorf("leer PDF %s: %w", rel, err)
	}
	return b, nil
}

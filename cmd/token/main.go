// Command token emite un JWT para la integración del e-commerce o para un operador.
//
//	go run ./cmd/token -sub tienda -role pedidos -exp 525600
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/afip-facturacion/pkg/config"
	"github.com/jhoicas/afip-facturacion/pkg/jwt"
)

func main() {
	sub := flag.String("sub", "", "identificador del sistema u operador")
	role := flag.String("role", jwt.RoleOrders, "rol: pedidos | operador")
	exp := flag.Int("exp", 0, "vigencia en minutos (0 = JWT_EXPIRATION_MINUTES)")
	flag.Parse()

	if *sub == "" {
		fmt.Fprintln(os.Stderr, "falta -sub")
		os.Exit(2)
	}
	if *role != jwt.RoleOrders && *role != jwt.RoleOperator {
		fmt.Fprintf(os.Stderr, "rol desconocido %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(1)
	}
	minutes := cfg.JWT.Expiration
	if *exp > 0 {
		minutes = *exp
	}
	tok, err := jwt.Generate(cfg.JWT.Secret, *sub, *role, cfg.JWT.Issuer, minutes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok)
}

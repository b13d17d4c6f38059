package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	_ "github.com/jhoicas/afip-facturacion/docs"
	"github.com/jhoicas/afip-facturacion/internal/application/afipws"
	"github.com/jhoicas/afip-facturacion/internal/application/billing"
	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/repository"
	infraafip "github.com/jhoicas/afip-facturacion/internal/infrastructure/afip"
	"github.com/jhoicas/afip-facturacion/internal/infrastructure/afip/signer"
	"github.com/jhoicas/afip-facturacion/internal/infrastructure/notify"
	"github.com/jhoicas/afip-facturacion/internal/infrastructure/padron"
	infrapdf "github.com/jhoicas/afip-facturacion/internal/infrastructure/pdf"
	"github.com/jhoicas/afip-facturacion/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/afip-facturacion/internal/infrastructure/redis"
	"github.com/jhoicas/afip-facturacion/internal/infrastructure/storage"
	httpRouter "github.com/jhoicas/afip-facturacion/internal/interfaces/http"
	"github.com/jhoicas/afip-facturacion/internal/migrate"
	"github.com/jhoicas/afip-facturacion/pkg/config"
	"github.com/jhoicas/afip-facturacion/pkg/logger"
)

// @title                       AFIP Facturación API
// @version                     1.0
// @description                 Facturación electrónica AFIP (WSAA/WSFE) para pedidos del e-commerce.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Bearer <token>
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("afip_env", string(cfg.AFIP.Environment)).
		Msg("iniciando aplicación")

	if err := cfg.AFIP.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuración AFIP inválida")
	}

	ctx := context.Background()
	if err := migrate.Up(ctx, cfg.DB.ConnectionString()); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}
	db, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer db.Close()

	// Registro operativo en afip_log (warn y superiores). Se cierra antes que el pool.
	dbLog := logger.NewDBWriter(postgres.NewLogRepository(db), zerolog.WarnLevel, 256)
	defer dbLog.Close()
	log = log.Tee(dbLog)
	zl := log.Zerolog()

	// Caché de tickets WSAA: Postgres por defecto, Redis si se configura.
	var ticketRepo repository.TicketRepository = postgres.NewTicketRepository(db)
	if cfg.AFIP.TicketStore == config.TicketStoreRedis {
		rdb, err := infraredis.NewClient(ctx, infraredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		ticketRepo = infraredis.NewTicketStore(rdb, cfg.AFIP.LoginBudget())
	}

	credential, err := loadCredential(cfg.AFIP)
	if err != nil {
		log.Fatal().Err(err).Msg("credencial AFIP")
	}
	certInfo, err := signer.Inspect(credential)
	if err != nil {
		log.Fatal().Err(err).Msg("credencial AFIP")
	}
	log.Info().
		Str("cuit", cfg.AFIP.CUIT).
		Str("subject", certInfo.Subject).
		Time("vence", certInfo.NotAfter).
		Msg("certificado cargado")

	transport, err := infraafip.NewSOAPTransport(infraafip.Config{
		Environment:        cfg.AFIP.Environment,
		ConnectTimeout:     cfg.AFIP.ConnectTimeout,
		Timeout:            cfg.AFIP.Timeout,
		InsecureSkipVerify: cfg.AFIP.InsecureSkipVerify,
	}, zl)
	if err != nil {
		log.Fatal().Err(err).Msg("transporte AFIP")
	}

	authClient := afipws.NewAuthClient(
		credential,
		afipws.ServiceWSFE,
		signer.NewCMSSigner(),
		transport,
		afipws.NewTicketCache(ticketRepo, zl),
		zl,
	)
	invoicing := afipws.NewInvoicingClient(afipws.Config{
		Regime:      cfg.AFIP.Regime,
		PointOfSale: cfg.AFIP.PointOfSale,
	}, authClient, afipws.NewNumberTracker(transport, zl), transport, zl)

	pdfStore, err := storage.NewDiskPDFStore(cfg.Billing.PDFDir)
	if err != nil {
		log.Fatal().Err(err).Msg("directorio de PDF")
	}
	pdfGenerator := infrapdf.NewMarotoPDFGenerator(infrapdf.Issuer{
		Name:          cfg.AFIP.IssuerName,
		TaxID:         cfg.AFIP.CUIT,
		IVACondition:  cfg.AFIP.IssuerIVACondition(),
		Address:       cfg.AFIP.IssuerAddress,
		GrossIncomeID: cfg.AFIP.IssuerGrossIncomeID,
		ActivityStart: cfg.AFIP.IssuerActivityStart,
	})

	var mailer billing.InvoiceMailer
	if cfg.Mail.Host != "" {
		mailer = notify.NewMailer(notify.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}, zl)
	}

	facturador := billing.NewFacturador(
		invoicing,
		postgres.NewInvoiceRepository(db),
		padron.NewClient(cfg.Padron.BaseURL, cfg.Padron.Timeout, zl),
		pdfGenerator,
		pdfStore,
		mailer,
		billing.Config{AutoInvoice: cfg.Billing.AutoInvoice, SendEmail: cfg.Billing.SendEmail},
		zl,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.AFIP.ConnectTimeout + cfg.AFIP.Timeout, // una emisión puede esperar a WSAA y a WSFE
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "AFIP Facturación API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Invoices: facturador,
		Status:   invoicing,
		AFIPInfo: httpRouter.AFIPInfo{
			Environment: string(cfg.AFIP.Environment),
			IssuerTaxID: cfg.AFIP.CUIT,
			PointOfSale: cfg.AFIP.PointOfSale,
			CertExpires: certInfo.NotAfter,
		},
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	// SIGHUP recarga el certificado (rotación) e invalida el ticket vigente.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			cred, err := loadCredential(cfg.AFIP)
			if err != nil {
				log.Error().Err(err).Msg("no se pudo recargar la credencial; se mantiene la anterior")
				continue
			}
			if err := authClient.RotateCredential(ctx, cred); err != nil {
				log.Error().Err(err).Msg("rotación de credencial")
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// loadCredential lee certificado y clave y verifica que correspondan al CUIT configurado.
func loadCredential(cfg config.AFIPConfig) (entity.FiscalCredential, error) {
	cred, err := signer.LoadCredential(cfg.CUIT, cfg.CertPath, cfg.KeyPath, cfg.CertPassword)
	if err != nil {
		return cred, err
	}
	if err := signer.CheckTaxID(cred); err != nil {
		return cred, err
	}
	return cred, nil
}

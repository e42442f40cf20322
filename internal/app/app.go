// Package app wires configuration into the services shared by the HTTP
// server and the reconcile command.
package app

import (
	"bprd-credits/internal/application/certificates"
	"bprd-credits/internal/application/claims"
	"bprd-credits/internal/application/eligibility"
	"bprd-credits/internal/application/intake"
	"bprd-credits/internal/application/ledger"
	"bprd-credits/internal/application/notifications"
	"bprd-credits/internal/application/reconcile"
	"bprd-credits/internal/application/uploads"
	"bprd-credits/internal/config"
	"bprd-credits/internal/pkg/umbrella"

	"gorm.io/gorm"
)

// Services is every application service built over one database handle.
type Services struct {
	Umbrellas    *umbrella.Table
	Ledger       *ledger.Service
	Eligibility  *eligibility.Service
	Certificates *certificates.Service
	Claims       *claims.Service
	Intake       *intake.Service
	Uploads      *uploads.Service
	Reconcile    *reconcile.Service
}

// NewServices builds the services. Notifications are only sent when a Brevo key is configured.
func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	var notifier notifications.Sender
	if cfg.SendinblueAPIKey != "" {
		notifier = &notifications.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom}
	}

	umbrellas := umbrella.New(cfg.ExtraUmbrellas...)
	led := &ledger.Service{DB: db}
	elig := &eligibility.Service{
		DB:         db,
		Ledger:     led,
		Thresholds: cfg.Thresholds(),
		Umbrellas:  umbrellas,
	}
	certs := &certificates.Service{
		DB:       db,
		Ledger:   led,
		Prefix:   cfg.CertificatePrefix,
		Notifier: notifier,
	}
	cl := &claims.Service{DB: db, Eligibility: elig, Issuer: certs}
	in := &intake.Service{DB: db, Ledger: led, Umbrellas: umbrellas, Notifier: notifier}

	return &Services{
		Umbrellas:    umbrellas,
		Ledger:       led,
		Eligibility:  elig,
		Certificates: certs,
		Claims:       cl,
		Intake:       in,
		Uploads: &uploads.Service{
			Client: &uploads.SupabaseClient{BaseURL: cfg.SupabaseURL, SecretKey: cfg.SupabaseSecretKey},
			Bucket: cfg.DocumentBucket,
		},
		Reconcile: &reconcile.Service{
			DB:          db,
			Ledger:      led,
			Claims:      cl,
			Intake:      in,
			Concurrency: cfg.ReconcileConcurrency,
		},
	}
}

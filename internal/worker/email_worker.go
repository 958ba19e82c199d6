package worker

// email_worker.go
// Processes email jobs from QueueEmail: invoice PDFs and declaration
// summaries sent to the account holder.

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/galo-graneros/ai-contador/internal/infra"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PDFPath string `json:"pdf_path,omitempty"`
}

// EmailWorker processes email jobs from QueueEmail.
type EmailWorker struct {
	mailer *infra.Mailer
}

func NewEmailWorker(mailer *infra.Mailer) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

// Process sends one notification, optionally with a PDF attached.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: payload invalido")
		return nil
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: destinatario vacio, se omite")
		return nil
	}

	if err := w.mailer.SendNotificacion(payload.ToEmail, payload.Subject, payload.Body, payload.PDFPath); err != nil {
		log.Error().Err(err).Str("to", payload.ToEmail).Msg("email_worker: envio fallido")
		return err
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: notificacion enviada")
	return nil
}

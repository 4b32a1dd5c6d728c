// Package extraction runs one image through the extraction pipeline:
// pick a service, pull positioned text tokens out of the image, recover a
// schedule from the tokens.
package extraction

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/s4sahiko/Timetable-Sync-Pro/extraction/services"
	"github.com/s4sahiko/Timetable-Sync-Pro/extraction/services/gemini"
	"github.com/s4sahiko/Timetable-Sync-Pro/timetable"
)

// MaxImageBytes caps uploads; bigger images get rejected before any
// engine call.
const MaxImageBytes = 4 << 20

var (
	ErrImageTooLarge    = errors.New("image exceeds the size limit")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// Service is one text extraction engine. Implementations turn image bytes
// into an ordered token sequence and wrap their failures as
// services.ErrExtraction.
type Service interface {
	GetName() string

	ExtractTokens(
		logger log.Entry,
		ctx context.Context,
		image []byte,
		mimeType string,
	) ([]timetable.Token, error)
}

type Orchestrator struct {
	serviceEntries []Service
}

func CreateOrchestrator(serviceEntries []Service) (Orchestrator, error) {
	if len(serviceEntries) == 0 {
		return Orchestrator{}, errors.New("at least one extraction service is needed")
	}
	return Orchestrator{serviceEntries: serviceEntries}, nil
}

func GetDefaultOrchestrator() Orchestrator {
	return Orchestrator{serviceEntries: []Service{gemini.GetDefaultService()}}
}

// GetConfiguredOrchestrator is GetDefaultOrchestrator with engine
// overrides applied; empty strings keep the production defaults.
func GetConfiguredOrchestrator(endpoint string, model string, requestRetryCount int) Orchestrator {
	service := gemini.GetDefaultService()
	if endpoint != "" {
		service.SetEndpoint(endpoint)
	}
	if model != "" {
		service.SetModel(model)
	}
	if requestRetryCount >= 0 {
		service.RequestRetryCount = requestRetryCount
	}
	return Orchestrator{serviceEntries: []Service{service}}
}

func getImageLogger(serviceName string, mimeType string, size int) log.Entry {
	return *log.WithFields(log.Fields{
		"service": serviceName,
		"mime":    mimeType,
		"bytes":   size,
	})
}

// ProcessImage runs the whole pipeline for one upload. Unreadable input
// and engine failures come back as services.ErrExtraction kinds; rows the
// parser could not use come back as warnings next to the schedule.
func (o Orchestrator) ProcessImage(
	ctx context.Context,
	image []byte,
	mimeType string,
) (*timetable.Schedule, []timetable.ParseWarning, error) {
	if err := checkImage(image, mimeType); err != nil {
		return nil, nil, err
	}

	// services are ordered by preference and images are cheap to hand
	// off, so just use the first one
	service := o.serviceEntries[0]
	logger := getImageLogger(service.GetName(), mimeType, len(image))

	logger.Info("starting extraction")
	tokens, err := service.ExtractTokens(logger, ctx, image, mimeType)
	if err != nil {
		logger.Error("extraction failed: ", err)
		if !errors.Is(err, services.ErrExtraction) {
			err = fmt.Errorf("%w: %w", services.ErrExtraction, err)
		}
		return nil, nil, err
	}

	schedule, warnings, err := timetable.Parse(tokens)
	if err != nil {
		logger.Error("token parse failed: ", err)
		return nil, nil, fmt.Errorf("%w: %w", services.ErrExtraction, err)
	}
	logger.WithFields(log.Fields{
		"entries":  schedule.Len(),
		"warnings": len(warnings),
	}).Info("finished extraction")
	return schedule, warnings, nil
}

func checkImage(image []byte, mimeType string) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: empty image upload", services.ErrExtraction)
	}
	if len(image) > MaxImageBytes {
		return fmt.Errorf("%w: %w: %d bytes", services.ErrExtraction, ErrImageTooLarge, len(image))
	}
	switch mimeType {
	case "image/png", "image/jpeg":
		return nil
	}
	return fmt.Errorf("%w: %w: %q", services.ErrExtraction, ErrUnsupportedImage, mimeType)
}

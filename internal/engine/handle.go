package engine

import (
	"context"
	"errors"

	"countryfilter/internal/messaging"
	"countryfilter/internal/metrics"
	"countryfilter/internal/models"
	"countryfilter/internal/tracing"

	"github.com/rs/zerolog/log"
)

// Handle answers a surface request on the loop. If no answer is produced
// before ctx ends, it returns messaging.ErrNoReply.
func (e *Engine) Handle(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	ctx, span := tracing.MessageSpan(ctx, string(req.Action))
	defer span.End()

	resp, err := e.handle(ctx, req)
	resp.ID = req.ID

	result := "ok"
	switch {
	case errors.Is(err, messaging.ErrNoReply):
		result = "no_reply"
	case err != nil:
		result = "error"
		resp.Error = err.Error()
	}
	metrics.MessagesTotal.WithLabelValues(string(req.Action), result).Inc()
	tracing.EndWithError(span, err)

	if err != nil {
		log.Warn().Err(err).Str("action", string(req.Action)).Msg("engine: request failed")
	}
	return resp, err
}

func (e *Engine) handle(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	if err := req.Validate(); err != nil {
		return messaging.Response{}, err
	}

	var (
		resp messaging.Response
		err  error
	)
	if perr := e.post(ctx, func(ctx context.Context) {
		resp, err = e.dispatch(ctx, req)
	}); perr != nil {
		return messaging.Response{}, perr
	}
	return resp, err
}

// dispatch runs on the loop
func (e *Engine) dispatch(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	switch req.Action {
	case messaging.ActionScanLocations:
		e.later = append(e.later, func(ctx context.Context) {
			ctx, span := tracing.ScanSpan(ctx, "scan")
			defer span.End()
			e.scanner.ScanAll(ctx)
		})
		return messaging.Response{Status: messaging.StatusScanning}, nil

	case messaging.ActionGetStats:
		st, detected := e.stats.Snapshot()
		return messaging.Response{Stats: &st, DetectedCountries: detected}, nil

	case messaging.ActionResetStats:
		if err := e.stats.Reset(ctx); err != nil {
			return messaging.Response{}, err
		}
		return messaging.Response{Status: messaging.StatusStatsReset}, nil

	case messaging.ActionUpdateSettings:
		var (
			saved models.Settings
			err   error
		)
		if req.ExpectedVersion != 0 {
			saved, err = e.settings.SaveIfVersion(ctx, *req.Settings, req.ExpectedVersion)
		} else {
			saved, err = e.settings.Save(ctx, *req.Settings)
		}
		if err != nil {
			return messaging.Response{}, err
		}
		e.applySettings(ctx, saved)
		return messaging.Response{Status: messaging.StatusSettingsUpdated, Settings: &saved}, nil

	case messaging.ActionGetSettings:
		s := e.current.Clone()
		return messaging.Response{Settings: &s}, nil
	}
	return messaging.Response{}, messaging.ErrUnknownAction
}

// Package evalbridge runs extraction commands inside the remote document.
//
// Closures cannot cross the automation boundary, so extractions are described
// as plain data (Command) and interpreted on the remote side by a fixed
// dispatcher that ships with this package. LocalDispatcher interprets the
// same commands over an HTML snapshot.
package evalbridge

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"suapreport/internal/components/assert"
	"suapreport/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("suapreport/internal/evalbridge")

const report_bridge_evaluate = "bridge.evaluate"

var (
	// ErrExtraction is returned when the remote evaluation fails.
	ErrExtraction = errors.New("extraction failed")
	// ErrSerialization is returned for commands or results that cannot be
	// encoded or decoded. It is an ErrExtraction.
	ErrSerialization = fmt.Errorf("%w: malformed payload", ErrExtraction)
)

//go:embed dispatcher.js
var DispatcherJS string

// Evaluator runs script in the remote document with arg as its only
// argument and returns the plain-data result.
type Evaluator interface {
	Eval(ctx context.Context, script string, arg any) (json.RawMessage, error)
}

type Bridge struct {
	tel telemetry.API
}

func New(tel telemetry.API) Bridge {
	assert.NotNil(tel, "tel")
	return Bridge{tel: telemetry.NewScopedAPI("evalbridge", tel)}
}

// Evaluate validates cmd, runs it through the dispatcher on ev and decodes
// its result.
func (b Bridge) Evaluate(ctx context.Context, ev Evaluator, cmd Command) (Result, error) {
	ctx, span := tracer.Start(ctx, "bridge.evaluate")
	span.SetAttributes(attribute.String("op", string(cmd.Op)))
	defer span.End()

	result, err := b.evaluate(ctx, ev, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		b.tel.ReportWarning(report_bridge_evaluate, err, string(cmd.Op))
		return Result{}, err
	}
	return result, nil
}

func (b Bridge) evaluate(ctx context.Context, ev Evaluator, cmd Command) (Result, error) {
	if ev == nil {
		return Result{}, fmt.Errorf("%w: no page to evaluate on", ErrExtraction)
	}
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}
	arg, err := json.Marshal(cmd)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	raw, err := ev.Eval(ctx, DispatcherJS, json.RawMessage(arg))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if result.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrExtraction, result.Error)
	}
	return result, nil
}

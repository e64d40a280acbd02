// Package signal implements the macro trading signals and the normalization
// pipeline that turns raw economic series into bounded, comparable signal
// values.
package signal

import (
	"fmt"

	"github.com/macroquant/macrorun/internal/timeseries"
)

// Signal is a pure transformation from a macro data frame to a raw signal
// series. Implementations declare the columns they read and how their output
// is normalized.
type Signal interface {
	// Name identifies the signal in results and configuration.
	Name() string
	// Required lists the macro columns the signal reads.
	Required() []string
	// Raw computes the raw, un-normalized signal values.
	Raw(data *timeseries.Frame) (*timeseries.Series, error)
	// Normalization returns the normalization settings for this signal.
	Normalization() NormalizeConfig
}

// MissingSeriesError reports a macro column a signal needs but the dataset
// lacks. The whole signal computation fails with it.
type MissingSeriesError struct {
	Signal string
	Series string
}

func (e *MissingSeriesError) Error() string {
	return fmt.Sprintf("signal %s: required series %q missing from macro data", e.Signal, e.Series)
}

// Generate runs the full pipeline for one signal: raw computation,
// normalization, then the optional smoothing and cap transformations in that
// order.
func Generate(s Signal, data *timeseries.Frame) (*timeseries.Series, error) {
	raw, err := s.Raw(data)
	if err != nil {
		return nil, err
	}
	cfg := s.Normalization()
	normalized, err := Normalize(raw, cfg)
	if err != nil {
		return nil, fmt.Errorf("signal %s: %w", s.Name(), err)
	}
	return applyTransforms(normalized, cfg), nil
}

// column fetches a named series from the frame or fails with a
// MissingSeriesError attributed to the signal.
func column(data *timeseries.Frame, signalName, col string) (*timeseries.Series, error) {
	s, ok := data.Column(col)
	if !ok {
		return nil, &MissingSeriesError{Signal: signalName, Series: col}
	}
	return s, nil
}

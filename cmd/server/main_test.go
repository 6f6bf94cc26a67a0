package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dental-intake-bot/internal/config"
	"dental-intake-bot/internal/intake"
)

type stubSink struct {
	counters intake.Counters
	err      error
}

func (s stubSink) RecoverCounters(context.Context) (intake.Counters, error) {
	return s.counters, s.err
}

func (s stubSink) AppendSubmission(context.Context, *intake.Projection) (intake.Receipt, error) {
	return intake.Receipt{}, nil
}

func TestRecoverCountersFailsStartupForPostgres(t *testing.T) {
	sink := stubSink{err: errors.New("connection refused")}
	if _, err := recoverCounters(context.Background(), config.SinkPostgres, sink, zerolog.Nop()); err == nil {
		t.Fatal("postgres started without its counters")
	}
}

func TestRecoverCountersSheetsContinuesFromZero(t *testing.T) {
	var buf bytes.Buffer
	sink := stubSink{counters: intake.Counters{LastSequence: 9}, err: errors.New("quota exceeded")}

	got, err := recoverCounters(context.Background(), config.SinkSheets, sink, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("sheets startup failed: %v", err)
	}
	if got != (intake.Counters{}) {
		t.Fatalf("counters = %+v, want zero", got)
	}
	if !strings.Contains(buf.String(), "counter recovery failed") {
		t.Fatalf("failure not logged: %s", buf.String())
	}
}

func TestRecoverCountersPassesThrough(t *testing.T) {
	want := intake.Counters{LastSequence: 42, LastRecordID: 7}
	for _, kind := range []string{config.SinkSheets, config.SinkPostgres} {
		got, err := recoverCounters(context.Background(), kind, stubSink{counters: want}, zerolog.Nop())
		if err != nil || got != want {
			t.Errorf("%s: counters = %+v, err = %v", kind, got, err)
		}
	}
}

func TestJakartaZoneEmbedded(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	if _, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone(); offset != 7*3600 {
		t.Fatalf("offset = %d", offset)
	}
}

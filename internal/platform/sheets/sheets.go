// Package sheets persists submissions to a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"dental-intake-bot/internal/intake"
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON []byte
}

// ClientOptions turns the credential settings into API client options.
func (c Config) ClientOptions() []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	switch {
	case len(c.CredentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(c.CredentialsJSON))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

type Sink struct {
	svc           *gsheets.Service
	spreadsheetID string
	sheet         string
	log           zerolog.Logger
}

// New connects to the Sheets API. Extra options are appended after the
// credential options.
func New(ctx context.Context, cfg Config, logger zerolog.Logger, extra ...option.ClientOption) (*Sink, error) {
	svc, err := gsheets.NewService(ctx, append(cfg.ClientOptions(), extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

func NewWithService(svc *gsheets.Service, spreadsheetID, sheet string, logger zerolog.Logger) *Sink {
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &Sink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		log:           logger.With().Str("component", "sheets").Str("sheet", sheet).Logger(),
	}
}

func (s *Sink) rangeOf(a1 string) string {
	return "'" + strings.ReplaceAll(s.sheet, "'", "''") + "'!" + a1
}

// RecoverCounters reads the number columns and returns the last numeric
// row. An empty sheet gets the header row and starts from zero.
func (s *Sink) RecoverCounters(ctx context.Context) (intake.Counters, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A:B")).Context(ctx).Do()
	if err != nil {
		return intake.Counters{}, fmt.Errorf("read counters: %w", err)
	}
	if len(resp.Values) == 0 {
		if err := s.writeHeader(ctx); err != nil {
			return intake.Counters{}, err
		}
		return intake.Counters{}, nil
	}
	return lastCounters(resp.Values), nil
}

func lastCounters(rows [][]interface{}) intake.Counters {
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 2 {
			continue
		}
		seq, err1 := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		rec, err2 := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[1])), 10, 64)
		if err1 == nil && err2 == nil {
			return intake.Counters{LastSequence: seq, LastRecordID: rec}
		}
	}
	return intake.Counters{}
}

func (s *Sink) writeHeader(ctx context.Context) error {
	header := intake.Header()
	vr := &gsheets.ValueRange{Values: [][]interface{}{toCells(header)}}
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, s.rangeOf("A1"), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	s.log.Info().Int("columns", len(header)).Msg("header row written")
	return nil
}

// AppendSubmission writes the rows, then applies image annotations. The
// annotation pass never fails the save.
func (s *Sink) AppendSubmission(ctx context.Context, p *intake.Projection) (intake.Receipt, error) {
	if len(p.Rows) == 0 {
		return intake.Receipt{RecordID: p.RecordID}, nil
	}

	values := make([][]interface{}, len(p.Rows))
	for i, row := range p.Rows {
		values[i] = toCells(row)
	}

	resp, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.rangeOf("A:A"), &gsheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return intake.Receipt{}, fmt.Errorf("append rows: %w", err)
	}

	receipt := intake.Receipt{RecordID: p.RecordID, Rows: len(p.Rows)}
	if resp.Updates != nil {
		receipt.Location = resp.Updates.UpdatedRange
	}

	if len(p.Annotations) > 0 {
		firstRow, err := FirstRow(receipt.Location)
		if err != nil {
			s.log.Warn().Err(err).Str("range", receipt.Location).Msg("cannot place images")
			return receipt, nil
		}
		s.applyImages(ctx, firstRow, p.Annotations)
	}
	return receipt, nil
}

func (s *Sink) applyImages(ctx context.Context, firstRow int, annotations []intake.Annotation) {
	data := make([]*gsheets.ValueRange, 0, len(annotations))
	for _, a := range annotations {
		cell := ColumnName(a.Column) + strconv.Itoa(firstRow+a.Row)
		data = append(data, &gsheets.ValueRange{
			Range:  s.rangeOf(cell),
			Values: [][]interface{}{{imageFormula(a.URL)}},
		})
	}
	req := &gsheets.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED", Data: data}
	if _, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		s.log.Warn().Err(err).Int("images", len(data)).Msg("inserting images failed")
		return
	}
	s.log.Debug().Int("images", len(data)).Msg("images inserted")
}

func imageFormula(url string) string {
	return `=IMAGE("` + strings.ReplaceAll(url, `"`, `""`) + `")`
}

// Status is what Check reports about the spreadsheet.
type Status struct {
	Title    string
	Locale   string
	Sheets   []string
	Counters intake.Counters
}

// Check verifies the spreadsheet is reachable without writing to it.
func (s *Sink) Check(ctx context.Context) (*Status, error) {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	st := &Status{}
	if meta.Properties != nil {
		st.Title = meta.Properties.Title
		st.Locale = meta.Properties.Locale
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			st.Sheets = append(st.Sheets, sh.Properties.Title)
		}
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A:B")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}
	st.Counters = lastCounters(resp.Values)
	return st, nil
}

func toCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

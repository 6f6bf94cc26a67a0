package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/signintech/gopdf"

	"dental-intake-bot/internal/intake"
)

type TelegramClient interface {
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// DejaVuSans covers the Latin Extended range used in names.
var defaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

var errNoFont = errors.New("no usable font for PDF")

// Service renders a saved submission as a PDF receipt and posts it to the
// archive chat.
type Service struct {
	tgClient      TelegramClient
	archiveChatID int64
	fontPaths     []string
	log           zerolog.Logger
}

// NewService builds the archiver. fontPath, when set, is tried before the
// system locations.
func NewService(tg TelegramClient, archiveChatID int64, fontPath string, logger zerolog.Logger) *Service {
	paths := defaultFontPaths
	if fontPath != "" {
		paths = append([]string{fontPath}, defaultFontPaths...)
	}
	return &Service{
		tgClient:      tg,
		archiveChatID: archiveChatID,
		fontPaths:     paths,
		log:           logger.With().Str("component", "report").Logger(),
	}
}

func (s *Service) Archive(ctx context.Context, p *intake.Projection) error {
	if s.archiveChatID == 0 || len(p.Rows) == 0 {
		return nil
	}
	pdfBytes, err := s.Render(p)
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("rekam_%d_%s.pdf", p.RecordID, p.SubmissionID.String()[:8])
	if err := s.tgClient.SendDocument(ctx, s.archiveChatID, pdfBytes, fileName); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	s.log.Info().Int64("record_id", p.RecordID).Int64("chat_id", s.archiveChatID).Msg("receipt archived")
	return nil
}

// Render lays the receipt out on A4 pages.
func (s *Service) Render(p *intake.Projection) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err != nil {
			fontErr = err
			continue
		}
		s.log.Debug().Str("path", path).Msg("font loaded")
		fontLoaded = true
		break
	}
	if !fontLoaded {
		return nil, fmt.Errorf("%w: last error: %v", errNoFont, fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 18); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Rekam Medis Gigi #%d", p.RecordID))
	pdf.Br(28)

	if err := pdf.SetFont("DejaVu", "", 10); err != nil {
		return nil, err
	}
	for _, line := range Lines(p) {
		if line == "" {
			pdf.Br(8)
			continue
		}
		wrapped, err := pdf.SplitText(line, 500)
		if err != nil {
			wrapped = []string{line}
		}
		for _, l := range wrapped {
			if pdf.GetY() > 800 {
				pdf.AddPage()
			}
			pdf.Cell(nil, l)
			pdf.Br(13)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Lines is the receipt text: a heading block, then one section per row
// listing the non-empty columns. An empty string marks a gap.
func Lines(p *intake.Projection) []string {
	header := intake.Header()
	out := []string{
		"Pemeriksa: " + p.Operator,
		"Waktu: " + p.CapturedAt.Format("02/01/2006 15:04:05"),
		fmt.Sprintf("Jumlah gigi: %d", len(p.Rows)),
		"ID kiriman: " + p.SubmissionID.String(),
	}
	for _, row := range p.Rows {
		out = append(out, "")
		for i, v := range row {
			if v == "" || i >= len(header) {
				continue
			}
			out = append(out, header[i]+": "+v)
		}
	}
	return out
}

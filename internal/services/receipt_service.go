package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"campusride/internal/domain"
	"campusride/internal/domain/models"
	"campusride/internal/utils"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

// ReceiptService renders PDF payment receipts and wallet statements.
type ReceiptService struct {
	Bookings   *BookingLedger
	Wallet     *WalletLedger
	Commission CommissionCalculator
	Clock      utils.Clock
	RequestID  string
}

func (s ReceiptService) PaymentReceipt(ctx context.Context, user, bookingID string) ([]byte, string, error) {
	b, err := s.Bookings.Get(ctx, user, bookingID)
	if err != nil {
		return nil, "", err
	}
	if b.Status != models.BookingPaid {
		return nil, "", domain.ValidationError{Field: "bookingId", Msg: "receipt is only available for paid bookings"}
	}
	price := b.Amount
	if b.PricePaid != nil {
		price = *b.PricePaid
	}
	split, err := s.Commission.Split(price)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "receipts", "payment_receipt", "booking_id="+b.ID)
	return buildReceiptPDF(b, split)
}

func (s ReceiptService) WalletStatement(ctx context.Context, user string) ([]byte, string, error) {
	snap, err := s.Wallet.Snapshot(ctx, user)
	if err != nil {
		return nil, "", err
	}
	if snap.Owner == "" {
		return nil, "", domain.ValidationError{Field: "owner", Msg: "required"}
	}
	utils.LogEvent(s.RequestID, "receipts", "wallet_statement", fmt.Sprintf("owner=%s transactions=%d", snap.Owner, len(snap.Transactions)))
	return buildStatementPDF(snap, s.Clock.Now().Format("2006-01-02 15:04"))
}

func buildReceiptPDF(b models.Booking, split CommissionSplit) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Reçu de paiement", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr("REÇU DE PAIEMENT"))
	pdf.Ln(12)

	paidAt := "-"
	if b.PaidAt != nil {
		paidAt = utils.FormatDateTime(*b.PaidAt)
	}
	amountPaid := b.Amount
	if b.AmountPaid != nil {
		amountPaid = *b.AmountPaid
	}

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Réservation    : %s", b.ID),
		fmt.Sprintf("Passager       : %s", safe(b.PassengerEmail, "-")),
		fmt.Sprintf("Conducteur     : %s", safe(b.OwnerEmail, "-")),
		fmt.Sprintf("Trajet         : %s -> %s", safe(b.Depart, "-"), safe(b.Destination, "-")),
		fmt.Sprintf("Départ         : %s", departureLabel(b)),
		fmt.Sprintf("Rendez-vous    : %s", safe(ResolveMeetingPoint(&b, nil).Address, "-")),
		fmt.Sprintf("Véhicule       : %s", safe(b.MaskedPlate, "-")),
		fmt.Sprintf("Moyen          : %s", safe(string(b.PaymentMethod), "-")),
		fmt.Sprintf("Payé le        : %s", paidAt),
	}
	for _, line := range lines {
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, tr("Détail:"))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, tr("Prix du trajet       : "+formatEuro(split.Price)))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Commission (%s%%)    : %s", split.Rate.Mul(decimal.NewFromInt(100)).StringFixed(0), formatEuro(split.Fee))))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr("Net conducteur       : "+formatEuro(split.DriverNet)))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr("Total payé: "+formatEuro(amountPaid)))
	pdf.Ln(12)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("RECU_%s_%s.pdf", safeFilenamePart(b.ID), safeFilenamePart(b.PassengerEmail))
	return buf.Bytes(), filename, nil
}

func buildStatementPDF(snap models.WalletSnapshot, generatedAt string) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Relevé de portefeuille", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr("RELEVÉ DE PORTEFEUILLE"))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, tr("Titulaire : "+snap.Owner))
	pdf.Ln(7)
	pdf.Cell(0, 7, tr("Édité le  : "+generatedAt))
	pdf.Ln(10)

	widths := []float64{38, 22, 70, 28, 28}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Date", "Type", "Libellé", "Montant", "Solde"} {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, t := range snap.Transactions {
		row := []string{
			utils.FormatDateTime(t.CreatedAt),
			string(t.Type),
			truncate(t.Description, 40),
			formatEuro(t.SignedAmount()),
			formatEuro(t.BalanceAfter),
		}
		for i, v := range row {
			align := ""
			if i >= 3 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, tr(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr("Solde actuel: "+formatEuro(snap.Balance)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("RELEVE_%s.pdf", safeFilenamePart(snap.Owner))
	return buf.Bytes(), filename, nil
}

func departureLabel(b models.Booking) string {
	if b.DepartureAt.IsZero() {
		return "-"
	}
	return utils.FormatDateTime(b.DepartureAt)
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", "@", "_at_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

// formatEuro renders 1234.5 as "1 234,50 EUR".
func formatEuro(v decimal.Decimal) string {
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	fixed := v.StringFixed(2)
	intPart, frac := fixed[:len(fixed)-3], fixed[len(fixed)-2:]
	var out []byte
	n := len(intPart)
	for i := 0; i < n; i++ {
		out = append(out, intPart[i])
		pos := n - i - 1
		if pos > 0 && pos%3 == 0 {
			out = append(out, ' ')
		}
	}
	return sign + string(out) + "," + frac + " EUR"
}

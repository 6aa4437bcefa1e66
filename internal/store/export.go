package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"bargain/internal/negotiation"
)

// Round export columns, one row per completed round across all sessions.
var roundHeader = []string{
	"Pair ID", "Group", "Round", "Proposer", "Offer A", "Offer B", "Response", "Timestamp",
}

// WriteRoundsCSV writes every round in spreadsheet-friendly form, with
// proposer and response labels expanded for human readers.
func WriteRoundsCSV(w io.Writer, rounds []negotiation.RoundRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(roundHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, rec := range rounds {
		row := []string{
			rec.PairID,
			fmt.Sprintf("%d", rec.GroupNumber),
			fmt.Sprintf("%d", rec.RoundNumber),
			proposerLabel(rec.Proposer),
			fmt.Sprintf("%d", rec.OfferA),
			fmt.Sprintf("%d", rec.OfferB),
			responseLabel(rec.Response),
			rec.Timestamp.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write round row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func proposerLabel(r negotiation.Role) string {
	switch r {
	case negotiation.RoleA:
		return "Person A"
	case negotiation.RoleB:
		return "Person B"
	}
	return string(r)
}

func responseLabel(resp negotiation.Response) string {
	switch resp {
	case negotiation.ResponseTooLow:
		return "Too low - counteroffer"
	case negotiation.ResponseAccept:
		return "Accept - offer accepted"
	case negotiation.ResponseBetterOffer:
		return "Better offer outside option"
	case negotiation.ResponseNotAccept:
		return "Not accept"
	}
	return string(resp)
}

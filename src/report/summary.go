package report

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/pipeline"
)

// SummaryLine renders the one-line headline a real operator tool would log
// after a run: the stock/derivative gain lines and how many diagnostics were
// raised, counts rendered with humanize.Comma the way the teacher's upload
// handler reports byte counts.
func SummaryLine(runID int64, r *pipeline.RunReport) string {
	return fmt.Sprintf(
		"run %s: kap_zeile20=%s kap_zeile21=%s so_zeile54=%s realizations=%s critical=%d warnings=%d",
		humanize.Comma(runID),
		r.KAP.Zeile20.String(),
		r.KAP.Zeile21.String(),
		r.SO.Zeile54.String(),
		humanize.Comma(int64(len(r.Realizations))),
		len(r.Critical),
		len(r.Warnings),
	)
}

// Package report prints run results, backup listings and certificate details as colored tables
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/backup"
	"github.com/ZeljkoBenovic/cpaasctl/db"
	"github.com/ZeljkoBenovic/cpaasctl/ssl"
	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
	"github.com/fatih/color"
	"github.com/rodaine/table"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	headerFmt = color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt = color.New(color.FgYellow).SprintfFunc()
	passFmt   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failFmt   = color.New(color.FgRed, color.Bold).SprintFunc()
)

func newTable(w io.Writer, headers ...interface{}) table.Table {
	return table.New(headers...).
		WithHeaderFormatter(headerFmt).
		WithFirstColumnFormatter(columnFmt).
		WithWriter(w)
}

func banner(w io.Writer, text string) {
	line := strings.Repeat("=", len(text)+4)
	fmt.Fprintf(w, "%s\n==%s==\n%s\n", line, text, line)
}

// Services prints the per service result of a deploy, restart, update or status run
// followed by the access URLs of the ready services
func Services(w io.Writer, r *types.Report) {
	var buff bytes.Buffer

	result := passFmt("PASSED")
	if !r.Succeeded() {
		result = failFmt("FAILED")
	}

	fmt.Fprintf(&buff, "[%s REPORT] %s in %s\n", strings.ToUpper(r.Action), result,
		r.Finished.Sub(r.Started).Round(time.Millisecond))

	if r.Err != nil {
		fmt.Fprintf(&buff, "error: %v\n", r.Err)
	}

	_, _ = w.Write(buff.Bytes())

	if len(r.Services) == 0 {
		banner(w, "NO SERVICES FOUND")

		return
	}

	tbl := newTable(w, "SERVICE", "TIER", "STATE", "CONTAINER", "ATTEMPTS", "DETAIL")
	for _, s := range r.Services {
		tbl.AddRow(s.Name, s.Tier, state(s.State), s.Container, s.Attempts, s.Detail)
	}

	tbl.Print()

	var urls []types.ServiceStatus
	for _, s := range r.Services {
		if s.URL != "" && s.State == types.StateReady {
			urls = append(urls, s)
		}
	}

	if len(urls) == 0 {
		return
	}

	fmt.Fprintln(w, "\n[ACCESS URLS]")

	tbl = newTable(w, "SERVICE", "URL")
	for _, s := range urls {
		tbl.AddRow(s.Name, s.URL)
	}

	tbl.Print()
}

func state(s types.State) string {
	switch s {
	case types.StateReady:
		return passFmt(string(s))
	case types.StateNotStarted:
		return string(s)
	default:
		return failFmt(string(s))
	}
}

// LastDeployment prints the most recent recorded run
func LastDeployment(w io.Writer, d db.Deployment) {
	result := passFmt("succeeded")
	if !d.Succeeded {
		result = failFmt("failed")
	}

	fmt.Fprintf(w, "[LAST RUN] %s %s at %s (%s)\n", d.Action, result,
		d.Finished.Local().Format(timeLayout), d.ID)

	if len(d.Unready) > 0 {
		fmt.Fprintf(w, "unready: %s\n", strings.Join(d.Unready, ", "))
	}
}

// Archives prints local and remote backup archives
func Archives(w io.Writer, archives []backup.Archive) {
	if len(archives) == 0 {
		banner(w, "NO BACKUPS FOUND")

		return
	}

	fmt.Fprintln(w, "[BACKUP ARCHIVES]")

	tbl := newTable(w, "NAME", "LOCATION", "SIZE", "CREATED")
	for _, a := range archives {
		location := "local"
		if a.Remote {
			location = "remote"
		}

		tbl.AddRow(a.Name, location, humanSize(a.Size), a.Created.Local().Format(timeLayout))
	}

	tbl.Print()
}

// BackupHistory prints the recorded backup runs
func BackupHistory(w io.Writer, runs []db.Backup) {
	if len(runs) == 0 {
		return
	}

	fmt.Fprintln(w, "\n[BACKUP HISTORY]")

	tbl := newTable(w, "NAME", "RESULT", "FAILED STAGE", "REMOTE KEY", "ERROR")
	for _, b := range runs {
		result := passFmt("ok")
		if !b.Succeeded {
			result = failFmt("failed")
		}

		tbl.AddRow(b.Name, result, b.FailedStage, b.RemoteKey, b.Error)
	}

	tbl.Print()
}

// Certificate prints the details of an installed certificate
func Certificate(w io.Writer, info ssl.CertInfo, now time.Time) {
	fmt.Fprintln(w, "[CERTIFICATE]")

	kind := "CA issued"
	if info.SelfSigned {
		kind = "self signed"
	}

	tbl := newTable(w, "FIELD", "VALUE")
	tbl.AddRow("subject", info.Subject)
	tbl.AddRow("issuer", info.Issuer)
	tbl.AddRow("type", kind)
	tbl.AddRow("dns names", strings.Join(info.DNSNames, ", "))
	tbl.AddRow("ip addresses", strings.Join(info.IPs, ", "))
	tbl.AddRow("valid from", info.NotBefore.Local().Format(timeLayout))
	tbl.AddRow("valid until", info.NotAfter.Local().Format(timeLayout))
	tbl.AddRow("days left", info.DaysLeft(now))
	tbl.Print()
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chartcrafter/chartcrafter"
)

const timeLayout = "2006-01-02 15:04:05"

// Formatter formats results for output.
type Formatter interface {
	FormatCreate(w io.Writer, result *chartcrafter.CreateResult) error
	FormatList(w io.Writer, result *ListResult) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatPrune(w io.Writer, result *PruneResult) error
	FormatStatus(w io.Writer, report *chartcrafter.StatusReport) error
	FormatImage(w io.Writer, result *ImageResult) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatCreate prints the chart URL and its deletion password. In quiet
// mode only the URL is printed.
func (f *HumanFormatter) FormatCreate(w io.Writer, result *chartcrafter.CreateResult) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, result.URL)
		return nil
	}
	_, _ = fmt.Fprintf(w, "Created: %s\n", result.ID)
	_, _ = fmt.Fprintf(w, "  URL:       %s\n", result.URL)
	_, _ = fmt.Fprintf(w, "  Image:     %s\n", result.Thumbnail)
	_, _ = fmt.Fprintf(w, "  Expires:   %s\n", result.ExpiresAt.Local().Format(timeLayout))
	_, _ = fmt.Fprintf(w, "  Password:  %s\n", result.Password)
	_, _ = fmt.Fprintln(w, "Keep the password; it is shown only once and is needed to delete the chart.")
	return nil
}

// FormatList formats list results as a table.
func (f *HumanFormatter) FormatList(w io.Writer, result *ListResult) error {
	if len(result.Charts) == 0 {
		_, _ = fmt.Fprintln(w, "No charts found")
		return nil
	}

	maxNameLen := 4 // "NAME"
	for i := range result.Charts {
		if len(result.Charts[i].Name) > maxNameLen {
			maxNameLen = len(result.Charts[i].Name)
		}
	}
	if maxNameLen > 40 {
		maxNameLen = 40
	}

	idLen := 36
	for i := range result.Charts {
		if len(result.Charts[i].ID) > idLen {
			idLen = len(result.Charts[i].ID)
		}
	}

	_, _ = fmt.Fprintf(w, "%-*s  %-*s  %-7s  %-19s  %s\n", idLen, "ID", maxNameLen, "NAME", "STATUS", "CREATED", "EXPIRES")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		strings.Repeat("-", idLen), strings.Repeat("-", maxNameLen),
		strings.Repeat("-", 7), strings.Repeat("-", 19), strings.Repeat("-", 19))

	for i := range result.Charts {
		c := &result.Charts[i]
		name := c.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}
		_, _ = fmt.Fprintf(w, "%-*s  %-*s  %-7s  %-19s  %s\n",
			idLen, c.ID,
			maxNameLen, name,
			c.Status,
			formatTime(c.CreatedAt),
			formatTime(c.ExpiresAt),
		)
	}

	_, _ = fmt.Fprintf(w, "\n%d chart(s), %d expired\n", len(result.Charts), result.Expired())
	return nil
}

// FormatDelete formats delete results as human-readable text.
func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.ID, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s\n", r.ID)
		}
	}
	return nil
}

// FormatPrune reports each expired chart and the final tally.
func (f *HumanFormatter) FormatPrune(w io.Writer, result *PruneResult) error {
	if result.Expired == 0 {
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "No expired charts (%d checked)\n", result.Total)
		}
		return nil
	}

	for i := range result.Results {
		r := &result.Results[i]
		label := r.ID
		if r.Name != "" {
			label = fmt.Sprintf("%s (%s)", r.ID, r.Name)
		}
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", label, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s\n", label)
		}
	}

	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "\nDeleted %d of %d expired chart(s)\n", result.Deleted, result.Expired)
	}
	return nil
}

// FormatStatus formats the server status report.
func (f *HumanFormatter) FormatStatus(w io.Writer, report *chartcrafter.StatusReport) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, report.Status)
		return nil
	}
	_, _ = fmt.Fprintf(w, "Status:   %s\n", report.Status)
	_, _ = fmt.Fprintf(w, "Version:  %s\n", report.Version)
	_, _ = fmt.Fprintf(w, "Uptime:   %s\n", (time.Duration(report.Uptime) * time.Second).String())
	_, _ = fmt.Fprintf(w, "Storage:  %s (%s)\n", report.Storage.Backend, report.Storage.State)
	if report.Storage.LastStoredItem != "" {
		_, _ = fmt.Fprintf(w, "  Last stored: %s\n", report.Storage.LastStoredItem)
	}
	if report.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:    %s\n", report.Error)
	}
	return nil
}

// FormatImage formats an image download result.
func (f *HumanFormatter) FormatImage(w io.Writer, result *ImageResult) error {
	if !f.Quiet && result.LocalPath != "-" {
		_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.ID, result.LocalPath, formatSize(result.Size))
	}
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatCreate formats the create result as JSON.
func (f *JSONFormatter) FormatCreate(w io.Writer, result *chartcrafter.CreateResult) error {
	return writeJSON(w, result)
}

// FormatList formats list results as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, result *ListResult) error {
	return writeJSON(w, result)
}

type jsonDeleteResult struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

func toJSONDeleteResults(results []DeleteResult) []jsonDeleteResult {
	out := make([]jsonDeleteResult, len(results))
	for i, r := range results {
		jr := jsonDeleteResult{ID: r.ID, Name: r.Name, Deleted: r.Deleted}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		out[i] = jr
	}
	return out
}

// FormatDelete formats delete results as JSON.
func (f *JSONFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	output := struct {
		Results []jsonDeleteResult `json:"results"`
	}{
		Results: toJSONDeleteResults(results),
	}
	return writeJSON(w, output)
}

// FormatPrune formats the prune summary as JSON.
func (f *JSONFormatter) FormatPrune(w io.Writer, result *PruneResult) error {
	output := struct {
		Total   int                `json:"total"`
		Expired int                `json:"expired"`
		Deleted int                `json:"deleted"`
		Results []jsonDeleteResult `json:"results"`
	}{
		Total:   result.Total,
		Expired: result.Expired,
		Deleted: result.Deleted,
		Results: toJSONDeleteResults(result.Results),
	}
	return writeJSON(w, output)
}

// FormatStatus formats the status report as JSON.
func (f *JSONFormatter) FormatStatus(w io.Writer, report *chartcrafter.StatusReport) error {
	return writeJSON(w, report)
}

// FormatImage formats an image download result as JSON.
func (f *JSONFormatter) FormatImage(w io.Writer, result *ImageResult) error {
	if result.LocalPath == "-" {
		return nil
	}
	return writeJSON(w, result)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	maxNameLen := 4     // "NAME"
	maxEndpointLen := 8 // "ENDPOINT"
	for i := range profiles {
		if len(profiles[i].Name) > maxNameLen {
			maxNameLen = len(profiles[i].Name)
		}
		if len(profiles[i].Endpoint) > maxEndpointLen {
			maxEndpointLen = len(profiles[i].Endpoint)
		}
	}
	if maxNameLen > 20 {
		maxNameLen = 20
	}
	if maxEndpointLen > 50 {
		maxEndpointLen = 50
	}

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %s\n", maxNameLen, "NAME", maxEndpointLen, "ENDPOINT", "MASTER KEY")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxEndpointLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		name := p.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}

		endpoint := p.Endpoint
		if len(endpoint) > maxEndpointLen {
			endpoint = endpoint[:maxEndpointLen-3] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %s\n", marker, maxNameLen, name, maxEndpointLen, endpoint, maskSecret(p.MasterKey, showSecrets))
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:       %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint:   %s\n", profile.Endpoint)
	_, _ = fmt.Fprintf(w, "Master Key: %s\n", maskSecret(profile.MasterKey, showSecrets))
	return nil
}

type jsonProfile struct {
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint"`
	MasterKey string `json:"master_key"`
	Default   bool   `json:"default"`
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		p := &profiles[i]
		output.Profiles[i] = jsonProfile{
			Name:      p.Name,
			Endpoint:  p.Endpoint,
			MasterKey: maskSecret(p.MasterKey, showSecrets),
			Default:   p.Name == defaultName,
		}
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	return writeJSON(w, jsonProfile{
		Name:      profile.Name,
		Endpoint:  profile.Endpoint,
		MasterKey: maskSecret(profile.MasterKey, showSecrets),
		Default:   isDefault,
	})
}

// maskSecret masks a secret string, showing only first 4 and last 4 characters.
// If showSecrets is true, returns the original value.
// If the secret is too short, returns all asterisks.
func maskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

package cli

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/pgEdge/pgedge-starload/internal/config"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/runlog"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func colorState(state string) string {
	switch state {
	case string(pipeline.RunSuccess):
		return color.GreenString(state)
	case string(pipeline.RunFailed):
		return color.RedString(state)
	case string(pipeline.TaskUpstreamFailed):
		return color.YellowString(state)
	default:
		return color.CyanString(state)
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func formatError(msg *string, width int) string {
	if msg == nil {
		return ""
	}
	s := strings.ReplaceAll(*msg, "\n", " ")
	if r := []rune(s); len(r) > width {
		s = string(r[:width-3]) + "..."
	}
	return s
}

// renderRuns writes the day runs as a table.
func renderRuns(w io.Writer, records []runlog.DayRecord) {
	table := newTable(w, []string{"Logical Date", "State", "Stage", "Started", "Duration", "Run ID", "Error"})
	for _, r := range records {
		table.Append([]string{
			r.Day().String(),
			colorState(r.State),
			r.Stage,
			r.StartedAt.UTC().Format(time.RFC3339),
			formatDuration(r.Duration()),
			r.RunID.String(),
			formatError(r.Error, 60),
		})
	}
	table.Render()
}

// renderTaskRuns writes the task results of one run as a table.
func renderTaskRuns(w io.Writer, records []runlog.TaskRecord) {
	table := newTable(w, []string{"Task", "State", "Attempts", "Rows", "Duration", "Error"})
	for _, r := range records {
		var d time.Duration
		if r.StartedAt != nil && r.FinishedAt != nil {
			d = r.FinishedAt.Sub(*r.StartedAt)
		}
		table.Append([]string{
			r.TaskID,
			colorState(r.State),
			fmt.Sprint(r.Attempt),
			fmt.Sprint(r.RowsAffected),
			formatDuration(d),
			formatError(r.Error, 80),
		})
	}
	table.Render()
}

// renderTasks writes the DAG as a table in execution order.
func renderTasks(w io.Writer, dag *pipeline.DAG) {
	table := newTable(w, []string{"Layer", "Task", "Upstream", "Stage", "Description"})
	for i, layer := range dag.Layers() {
		for _, t := range layer {
			table.Append([]string{
				fmt.Sprint(i + 1),
				t.ID(),
				strings.Join(t.Upstream(), ", "),
				string(t.Stage()),
				warehouse.Describe(t),
			})
		}
	}
	table.Render()
}

type taskDoc struct {
	ID          string   `yaml:"id"`
	Upstream    []string `yaml:"upstream,omitempty"`
	Stage       string   `yaml:"stage"`
	Description string   `yaml:"description,omitempty"`
}

type dagDoc struct {
	DagID  string     `yaml:"dag_id"`
	Flow   string     `yaml:"flow"`
	Layers [][]string `yaml:"layers"`
	Tasks  []taskDoc  `yaml:"tasks"`
}

// renderTasksYAML writes the DAG as a YAML document.
func renderTasksYAML(w io.Writer, dag *pipeline.DAG) error {
	doc := dagDoc{DagID: dag.ID(), Flow: dag.String()}
	for _, layer := range dag.Layers() {
		ids := make([]string, 0, len(layer))
		for _, t := range layer {
			ids = append(ids, t.ID())
			doc.Tasks = append(doc.Tasks, taskDoc{
				ID:          t.ID(),
				Upstream:    t.Upstream(),
				Stage:       string(t.Stage()),
				Description: warehouse.Describe(t),
			})
		}
		doc.Layers = append(doc.Layers, ids)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// renderConfig writes the effective configuration as YAML with the
// connection password masked.
func renderConfig(w io.Writer, c *config.Config) error {
	out := *c
	out.Connection = redactConnection(c.Connection)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

// passwordParam matches a keyword/value password, quoted or not.
var passwordParam = regexp.MustCompile(`password\s*=\s*('(?:[^'\\]|\\.)*'|\S+)`)

const redacted = "xxxxx"

// redactConnection masks the password of a connection string in either
// URL or keyword/value form. In URLs both the userinfo and a password
// query parameter are masked.
func redactConnection(conn string) string {
	if !strings.Contains(conn, "://") {
		return passwordParam.ReplaceAllString(conn, "password="+redacted)
	}
	u, err := url.Parse(conn)
	if err != nil {
		return passwordParam.ReplaceAllString(conn, "password="+redacted)
	}
	if q := u.Query(); q.Has("password") {
		q.Set("password", redacted)
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

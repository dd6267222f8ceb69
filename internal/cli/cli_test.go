package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/application"
	"github.com/JonMunkholm/qrtrack/internal/config"
	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

// useMemoryApp points every command at one shared in-memory App.
func useMemoryApp(t *testing.T) *application.App {
	t.Helper()
	cfg, err := config.LoadFrom(func(k string) string {
		if k == "STORE_DRIVER" {
			return config.DriverMemory
		}
		return ""
	})
	require.NoError(t, err)

	shared, err := application.Open(context.Background(), cfg,
		application.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	prev := openApp
	openApp = func(context.Context, ...application.Option) (*application.App, error) {
		return shared, nil
	}
	t.Cleanup(func() { openApp = prev })
	return shared
}

// run executes qrtrackctl with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, f := range []*[]string{&importStandard, &importCustom, &importMapping} {
		*f = nil
	}
	importProgram, importFile, importDesc = "", "", ""
	exportDataset, exportOut = "", ""
	recountDataset = ""
	checkinClass, checkinID, checkinTime = "", "", ""
	actorID, orgID, verbose = "qrtrackctl", "", false
	for _, c := range append(rootCmd.Commands(), rootCmd) {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		c.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return out.String(), err
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yoga.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func importYoga(t *testing.T, a *application.App) *core.Dataset {
	t.Helper()
	path := writeCSV(t, "First,Last,Email,Phone\nJane,Doe,jane@example.com,555-123-4567\n,Nobody,nobody@example.com,\n")
	out, err := run(t, "import",
		"--program", "Spring Yoga",
		"--file", path,
		"--standard", "firstName,lastName,email,phone",
		"--map", "First=firstname",
		"--map", "Last=lastname",
		"--org", "org-1",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 records, 1 skipped")
	assert.Contains(t, out, "row 2:")

	list, err := a.Service.Records.Datasets(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	return &list[0]
}

func TestImportAndExport(t *testing.T) {
	a := useMemoryApp(t)
	ds := importYoga(t, a)
	assert.Equal(t, "Spring Yoga - Participants", ds.Name)
	assert.Equal(t, "qrtrackctl", ds.CreatedBy)

	out, err := run(t, "export", "--dataset", ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "firstname,lastname,email,phone\nJane,Doe,jane@example.com,555-123-4567\n", out)

	dir := t.TempDir()
	_, err = run(t, "export", "--dataset", ds.ID, "--out", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "spring-yoga-participants-20250101.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "firstname,lastname,email,phone\n"))

	_, err = run(t, "export", "--dataset", "missing")
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestImportFlagErrors(t *testing.T) {
	useMemoryApp(t)
	path := writeCSV(t, "Email\njane@example.com\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file flag", []string{"import", "--program", "Yoga"}, `"file" not set`},
		{"bad custom type", []string{"import", "--program", "Yoga", "--file", path, "--custom", "Mat:color"}, "unknown type"},
		{"nameless custom", []string{"import", "--program", "Yoga", "--file", path, "--custom", ":string"}, "has no name"},
		{"bad mapping", []string{"import", "--program", "Yoga", "--file", path, "--map", "Email"}, "Header=field"},
		{"unreadable file", []string{"import", "--program", "Yoga", "--file", path + ".gone"}, "open participant file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseCustomFields(t *testing.T) {
	got, err := parseCustomFields([]string{"Mat Size:string", " Notes ", "Age:number"})
	require.NoError(t, err)
	assert.Equal(t, []core.CustomField{
		{FieldName: "Mat Size", FieldType: core.FieldString},
		{FieldName: "Notes"},
		{FieldName: "Age", FieldType: core.FieldNumber},
	}, got)
}

func TestCheckin(t *testing.T) {
	a := useMemoryApp(t)
	ds := importYoga(t, a)

	ctx := core.ContextWithActor(context.Background(), core.Actor{UserID: "coord-1", OrgID: "org-1"})
	_, err := a.Service.Scans.CreateSession(ctx, core.CheckInSession{ID: "class1", DatasetID: ds.ID, Name: "Week 1"})
	require.NoError(t, err)

	out, err := run(t, "checkin", "--class", "class1", "--id", "JANE@example.com", "--time", "2025-01-01T09:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe checked in at 2025-01-01T09:00:00Z.\n", out)

	out, err = run(t, "checkin", "--class", "class1", "--id", "555-123-4567")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe was already checked in at 2025-01-01T09:00:00Z.\n", out)

	_, err = run(t, "checkin", "--class", "class1", "--id", "jane@example.com", "--time", "yesterday")
	assert.ErrorContains(t, err, "--time")

	_, err = run(t, "checkin", "--class", "nope", "--id", "jane@example.com")
	assert.ErrorIs(t, err, core.ErrUnknownSession)

	_, err = run(t, "checkin", "--class", "class1", "--id", "ghost@example.com")
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestRecount(t *testing.T) {
	a := useMemoryApp(t)

	out, err := run(t, "recount")
	require.NoError(t, err)
	assert.Equal(t, "No datasets.\n", out)

	ds := importYoga(t, a)
	out, err = run(t, "recount", "--dataset", ds.ID)
	require.NoError(t, err)
	assert.Contains(t, out, ds.ID)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "0 of 1 datasets repaired.")

	out, err = run(t, "recount")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 1 datasets repaired.")
}

func TestMigrateMemory(t *testing.T) {
	useMemoryApp(t)
	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "Schema up to date (memory store).\n", out)
}

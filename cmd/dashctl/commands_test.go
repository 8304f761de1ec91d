package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashboard-core/internal/catalog"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
	"github.com/platformbuilds/dashboard-core/pkg/store"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()
	log := logger.NewNop()
	templates, err := catalog.New(log)
	require.NoError(t, err)
	s := store.NewMemoryStore(log)
	return &env{store: s, repo: repo.NewDefaultDashboardRepo(s, log), templates: templates, logger: log}
}

// execute runs one dashctl invocation against e and returns its stdout.
func execute(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{out: &out, open: func(globalFlags) (*env, error) { return e, nil }}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return out.String(), err
}

func TestTemplatesCommand(t *testing.T) {
	out, err := execute(t, newTestEnv(t), "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "monthly-sales")
	assert.Contains(t, out, "market-share")
	assert.True(t, strings.HasPrefix(out, "ID"))
}

func TestDashboardLifecycle(t *testing.T) {
	e := newTestEnv(t)

	out, err := execute(t, e, "create", "--name", "Sales")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = execute(t, e, "add-chart", id, "market-share")
	require.NoError(t, err)
	widgetID := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(widgetID, "market-share-"))

	out, err = execute(t, e, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Sales")

	out, err = execute(t, e, "filter", id, widgetID, "--sort", "desc", "--top", "3")
	require.NoError(t, err)
	var filtered struct {
		Labels []string `json:"labels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &filtered))
	assert.Equal(t, []string{"Apple", "Samsung", "Microsoft"}, filtered.Labels)

	// filtering is display-only
	rec, err := e.repo.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Len(t, rec.Charts[widgetID].Data.Labels, 10)

	out, err = execute(t, e, "preview", id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<svg"))

	_, err = execute(t, e, "rename", id, "  Renamed  ")
	require.NoError(t, err)
	out, err = execute(t, e, "show", id)
	require.NoError(t, err)
	var view struct {
		Name    string `json:"name"`
		Widgets []struct {
			ID string `json:"id"`
		} `json:"widgets"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Renamed", view.Name)
	require.Len(t, view.Widgets, 1)
	assert.Equal(t, widgetID, view.Widgets[0].ID)

	_, err = execute(t, e, "remove-chart", id, widgetID)
	require.NoError(t, err)
	_, err = execute(t, e, "remove-chart", id, widgetID)
	assert.Error(t, err)

	_, err = execute(t, e, "delete", id)
	assert.Error(t, err, "delete needs --yes")

	out, err = execute(t, e, "delete", id, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+id)

	out, err = execute(t, e, "delete", id, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "not found")
}

func TestFilterCommand_RejectsBadFlags(t *testing.T) {
	e := newTestEnv(t)
	_, err := execute(t, e, "filter", "d", "w", "--sort", "sideways")
	assert.Error(t, err)
	_, err = execute(t, e, "filter", "d", "w", "--top", "-1")
	assert.Error(t, err)
}

func TestPreviewCommand_MissingDashboard(t *testing.T) {
	_, err := execute(t, newTestEnv(t), "preview", "nope")
	assert.Error(t, err)
}

func TestSeedCommand(t *testing.T) {
	e := newTestEnv(t)
	out, err := execute(t, e, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded demo with 4 charts")

	out, err = execute(t, e, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

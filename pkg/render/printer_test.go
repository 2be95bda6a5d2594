package render_test

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
	"github.com/Sumatoshi-tech/evalgrep/pkg/render"
	"github.com/Sumatoshi-tech/evalgrep/pkg/search"
)

func msg(role evallog.Role, content string) *evallog.Message {
	return &evallog.Message{Role: role, Content: content}
}

func fileResult(path string, samples ...*evallog.Sample) *search.FileResult {
	result := &search.FileResult{Path: path}

	for _, sample := range samples {
		result.Samples = append(result.Samples, search.SampleResult{Sample: sample})
		result.Matched += sample.Present()
	}

	return result
}

func TestCollapse(t *testing.T) {
	t.Parallel()

	a, b := msg(evallog.RoleUser, "a"), msg(evallog.RoleAssistant, "b")

	tests := []struct {
		name string
		in   []*evallog.Message
		want []*evallog.Message
	}{
		{name: "empty", in: []*evallog.Message{}, want: []*evallog.Message{}},
		{name: "all present", in: []*evallog.Message{a, b}, want: []*evallog.Message{a, b}},
		{name: "inner run", in: []*evallog.Message{a, nil, nil, b}, want: []*evallog.Message{a, nil, b}},
		{name: "edges", in: []*evallog.Message{nil, nil, a, nil, b, nil, nil, nil}, want: []*evallog.Message{nil, a, nil, b, nil}},
		{name: "all absent", in: []*evallog.Message{nil, nil, nil}, want: []*evallog.Message{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, render.Collapse(tt.in))
		})
	}
}

func TestPrinter_GapRendersNothing(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printer := render.NewPrinter(&out, &bytes.Buffer{}, render.WithColorMode(render.ColorNever))

	sample := &evallog.Sample{ID: "s", Epoch: 1, Messages: []*evallog.Message{
		msg(evallog.RoleUser, "first"), nil, nil, msg(evallog.RoleAssistant, "second"),
	}}

	require.NoError(t, printer.WriteFile(fileResult("/logs/run.eval", sample)))

	want := "\nrun.eval sample s epoch 1 | [user]\nfirst\n\n" +
		"\nrun.eval sample s epoch 1 | [assistant]\nsecond\n\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, 2, strings.Count(out.String(), " sample s epoch 1 | "))
}

func TestPrinter_HelloWorldBlock(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printer := render.NewPrinter(&out, &bytes.Buffer{},
		render.WithColorMode(render.ColorNever),
		render.WithHighlight(regexp.MustCompile("world")),
	)

	sample := &evallog.Sample{ID: "s1", Epoch: 1, Messages: []*evallog.Message{msg(evallog.RoleUser, "hello world"), nil}}

	require.NoError(t, printer.WriteFile(fileResult("dir/greetings.eval", sample)))
	assert.Equal(t, "\ngreetings.eval sample s1 epoch 1 | [user]\nhello world\n\n", out.String())
}

func TestPrinter_NothingMatched(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printer := render.NewPrinter(&out, &bytes.Buffer{})

	sample := &evallog.Sample{ID: "s", Epoch: 1, Messages: []*evallog.Message{nil, nil}}

	require.NoError(t, printer.WriteFile(fileResult("a.eval", sample)))
	require.NoError(t, printer.WriteFile(fileResult("b.eval")))
	assert.Empty(t, out.String())
}

func TestPrinter_ColorsAndHighlight(t *testing.T) {
	t.Parallel()

	printer := render.NewPrinter(&bytes.Buffer{}, &bytes.Buffer{},
		render.WithColorMode(render.ColorAlways),
		render.WithHighlight(regexp.MustCompile("o+")),
	)

	sample := &evallog.Sample{ID: "id7", Epoch: 3}
	block := printer.FormatBlock("/x/run.eval", sample, msg(evallog.RoleTool, "foo boo"))

	const (
		cyan     = "\x1b[36m"
		yellow   = "\x1b[33m"
		green    = "\x1b[32m"
		redBold  = "\x1b[31;1m"
		yellowBd = "\x1b[33;1m"
	)

	assert.Contains(t, block, cyan+"run.eval")
	assert.Contains(t, block, yellow+"id7")
	assert.Contains(t, block, green+"3")
	assert.Contains(t, block, yellowBd+"[tool]")
	assert.Equal(t, 2, strings.Count(block, redBold+"oo"))
	assert.True(t, strings.HasPrefix(block, "\n"))
	assert.True(t, strings.HasSuffix(block, "\n\n"))
}

func TestPrinter_RoleColors(t *testing.T) {
	t.Parallel()

	printer := render.NewPrinter(&bytes.Buffer{}, &bytes.Buffer{}, render.WithColorMode(render.ColorAlways))
	sample := &evallog.Sample{ID: "s", Epoch: 1}

	tests := map[evallog.Role]string{
		evallog.RoleSystem:    "\x1b[35;1m[system]",
		evallog.RoleUser:      "\x1b[34;1m[user]",
		evallog.RoleAssistant: "\x1b[32;1m[assistant]",
		evallog.RoleTool:      "\x1b[33;1m[tool]",
	}

	for role, want := range tests {
		assert.Contains(t, printer.FormatBlock("a.eval", sample, msg(role, "x")), want, role.String())
	}
}

func TestPrinter_NeverColorHasNoEscapes(t *testing.T) {
	t.Parallel()

	printer := render.NewPrinter(&bytes.Buffer{}, &bytes.Buffer{},
		render.WithColorMode(render.ColorNever),
		render.WithHighlight(regexp.MustCompile("x")),
	)

	block := printer.FormatBlock("a.eval", &evallog.Sample{ID: "s", Epoch: 1}, msg(evallog.RoleSystem, "xx"))
	assert.NotContains(t, block, "\x1b[")
}

func TestPrinter_ReportError(t *testing.T) {
	t.Parallel()

	var errOut bytes.Buffer

	printer := render.NewPrinter(&bytes.Buffer{}, &errOut, render.WithColorMode(render.ColorNever))

	printer.ReportError(&search.EntryError{Path: "/l/a.eval", Entry: "samples/x_epoch_1.json", Err: evallog.ErrInvalidMessage})
	printer.ReportError(&search.FileError{Path: "/l/b.eval", Err: errors.New("not a valid zip file")})
	printer.ReportError(errors.New("plain"))

	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "error: /l/a.eval: entry samples/x_epoch_1.json: invalid message", lines[0])
	assert.Equal(t, "error: /l/b.eval: not a valid zip file", lines[1])
	assert.Equal(t, "error: plain", lines[2])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestPrinter_WriteErrorIsReturned(t *testing.T) {
	t.Parallel()

	printer := render.NewPrinter(failingWriter{}, &bytes.Buffer{})

	sample := &evallog.Sample{ID: "s", Epoch: 1, Messages: []*evallog.Message{msg(evallog.RoleUser, "x")}}

	err := printer.WriteFile(fileResult("a.eval", sample))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestPrinter_ConcurrentBlocksDoNotInterleave(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printer := render.NewPrinter(&out, &bytes.Buffer{}, render.WithColorMode(render.ColorNever))

	const files = 16

	var wg sync.WaitGroup

	for i := range files {
		wg.Add(1)

		go func() {
			defer wg.Done()

			content := strings.Repeat(fmt.Sprintf("%c", 'a'+i), 2048)
			sample := &evallog.Sample{ID: "s", Epoch: 1, Messages: []*evallog.Message{msg(evallog.RoleUser, content)}}

			assert.NoError(t, printer.WriteFile(fileResult(fmt.Sprintf("f%d.eval", i), sample)))
		}()
	}

	wg.Wait()

	blocks := strings.Split(strings.Trim(out.String(), "\n"), "\n\n\n")
	require.Len(t, blocks, files)

	for _, block := range blocks {
		header, body, ok := strings.Cut(block, "\n")
		require.True(t, ok)
		assert.Contains(t, header, " sample s epoch 1 | [user]")
		assert.Len(t, body, 2048)
		assert.Equal(t, strings.Repeat(body[:1], 2048), body)
	}
}

func TestParseColorMode(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]render.ColorMode{
		"":        render.ColorAuto,
		"auto":    render.ColorAuto,
		"ALWAYS":  render.ColorAlways,
		" never ": render.ColorNever,
	} {
		got, err := render.ParseColorMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := render.ParseColorMode("sometimes")
	require.ErrorIs(t, err, render.ErrInvalidColorMode)
}

func TestNewColor_HonorsMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "\x1b[32mok\x1b[0m", render.NewColor(render.ColorAlways, color.FgGreen).Sprint("ok"))
	assert.Equal(t, "ok", render.NewColor(render.ColorNever, color.FgGreen).Sprint("ok"))
}

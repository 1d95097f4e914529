package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
)

// usagePrefixes identify parse failures from cobra and pflag. Neither
// library types these errors, so matching the message prefix is the only
// signal available.
var usagePrefixes = []string{
	"flag needs an argument:",
	"unknown flag:",
	"unknown shorthand flag:",
	"unknown command",
	"invalid argument",
}

// ErrorHandler renders a fatal error through fang's styles. Parse failures
// additionally get a pointer at --help.
func ErrorHandler(w io.Writer, styles fang.Styles, err error) {
	fprintln(w, styles.ErrorHeader.String())
	fprintln(w, lipgloss.NewStyle().MarginLeft(2).Render(err.Error()))
	fprintln(w)

	if !isUsageError(err) {
		return
	}

	fprintln(w, lipgloss.JoinHorizontal(
		lipgloss.Left,
		styles.ErrorText.UnsetWidth().Render("Try"),
		styles.Program.Flag.Render("--help"),
		styles.ErrorText.UnsetWidth().UnsetMargins().UnsetTransform().PaddingLeft(1).Render("for usage."),
	))
	fprintln(w)
}

func isUsageError(err error) bool {
	msg := err.Error()

	for _, prefix := range usagePrefixes {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}

	return false
}

func fprintln(w io.Writer, a ...any) {
	_, err := fmt.Fprintln(w, a...)
	if err != nil {
		panic(err)
	}
}

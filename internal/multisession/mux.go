package multisession

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandMultiplexer delegates id allocation to the session helper
// binary. `<helper> open <sessionPath> <display> <seatPath>` prints the
// allocated id on stdout; `<helper> close <id>` releases it.
type CommandMultiplexer struct {
	helperPath string
}

func NewCommandMultiplexer(helperPath string) *CommandMultiplexer {
	return &CommandMultiplexer{helperPath: helperPath}
}

func (m *CommandMultiplexer) OpenSession(sessionPath, display, seatPath string) (int, error) {
	out, err := exec.Command(m.helperPath, "open", sessionPath, display, seatPath).Output()
	if err != nil {
		return 0, fmt.Errorf("session helper open: %w", err)
	}

	id, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("session helper returned invalid id %q: %w", strings.TrimSpace(string(out)), err)
	}
	return id, nil
}

func (m *CommandMultiplexer) CloseSession(id int) error {
	if err := exec.Command(m.helperPath, "close", strconv.Itoa(id)).Run(); err != nil {
		return fmt.Errorf("session helper close: %w", err)
	}
	return nil
}

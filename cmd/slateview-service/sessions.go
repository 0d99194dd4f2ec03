package main

import (
	"fmt"

	"github.com/slateview-cm/service/internal/login1"
	"github.com/slateview-cm/service/internal/procenv"
)

// listSessions prints the sessions logind currently knows about, with the
// properties the supervisor's eligibility checks look at.
func listSessions() error {
	conn, err := login1.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	inspector := login1.NewInspector(conn)
	resolver := procenv.NewResolver()

	paths, err := inspector.ListSessions()
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	for _, path := range paths {
		display := inspector.Display(path)
		leader := inspector.LeaderPID(path)
		seat := inspector.Seat(path)

		eligible := "no (non-graphical)"
		if display != "" {
			if len(resolver.Resolve(leader)) > 0 {
				eligible = "yes"
			} else {
				eligible = "no (empty environment)"
			}
		}

		fmt.Printf("%s\n", path)
		fmt.Printf("  id:       %s\n", inspector.ID(path))
		fmt.Printf("  display:  %q\n", display)
		fmt.Printf("  leader:   %d\n", leader)
		fmt.Printf("  seat:     %s (%s)\n", seat.ID, seat.Path)
		fmt.Printf("  eligible: %s\n", eligible)
	}
	return nil
}

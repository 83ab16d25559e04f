package service

import "fmt"

// Action enumerates the five dispatcher operations. Request routing converts
// the wire string into this closed set once; everything downstream switches
// exhaustively over it.
type Action int

const (
	ActionRegister Action = iota
	ActionLogin
	ActionVerifySession
	ActionGetUser
	ActionLogout
)

var actionNames = map[Action]string{
	ActionRegister:      "register",
	ActionLogin:         "login",
	ActionVerifySession: "verify-session",
	ActionGetUser:       "get-user",
	ActionLogout:        "logout",
}

// ParseAction maps the wire action string onto the enum.
func ParseAction(value string) (Action, error) {
	for action, name := range actionNames {
		if name == value {
			return action, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", value)
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

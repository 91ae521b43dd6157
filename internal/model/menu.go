package model

import "strings"

// MenuChoice is a closed set of authentication menu actions
type MenuChoice int

const (
	MenuInvalid MenuChoice = iota
	MenuLogin
	MenuRegister
	MenuReconnect
	MenuQuit
)

// BackInput aborts the action in progress at any prompt
const BackInput = "BACK"

// ParseMenuChoice maps raw menu input to a choice. Input is upper-cased first.
func ParseMenuChoice(input string) MenuChoice {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "1":
		return MenuLogin
	case "2":
		return MenuRegister
	case "3":
		return MenuReconnect
	case "4":
		return MenuQuit
	default:
		return MenuInvalid
	}
}

func (c MenuChoice) String() string {
	switch c {
	case MenuLogin:
		return "login"
	case MenuRegister:
		return "register"
	case MenuReconnect:
		return "reconnect"
	case MenuQuit:
		return "quit"
	default:
		return "invalid"
	}
}

package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

const DefaultHorizon = "3 Months"

// Horizons offered by the interactive prompt. Any free-form horizon is
// accepted on the command line.
var Horizons = []string{"1 Month", DefaultHorizon, "6 Months", "1 Year"}

const (
	actionAnalyze = "Analyze a symbol"
	actionRank    = "Rank a sector"
	actionHistory = "Show recent runs"
	actionQuit    = "Quit"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// validateTicker accepts letters, digits, dots and hyphens, up to 16 characters.
func validateTicker(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("invalid input type")
	}
	str = strings.TrimSpace(strings.ToUpper(str))
	if len(str) == 0 {
		return fmt.Errorf("ticker symbol cannot be empty")
	}
	if len(str) > 16 {
		return fmt.Errorf("ticker symbol too long (max 16 characters)")
	}
	if !tickerPattern.MatchString(str) {
		return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
	}
	return nil
}

func PromptForAction() (string, error) {
	var action string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{actionAnalyze, actionRank, actionHistory, actionQuit},
		Default: actionAnalyze,
	}
	err := survey.AskOne(prompt, &action)
	return action, err
}

// PromptForTicker prompts the user to enter a stock ticker symbol
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, BRK.B):",
		Help:    "Please enter a valid stock ticker symbol for analysis",
	}
	if err := survey.AskOne(prompt, &ticker, survey.WithValidator(validateTicker)); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

func PromptForStrategy(names []string, def string) (string, error) {
	var strategy string
	prompt := &survey.Select{
		Message: "Select a strategy profile:",
		Options: names,
		Help:    "The profile decides how much each factor counts toward the overall score",
	}
	for _, n := range names {
		if strings.EqualFold(n, def) {
			prompt.Default = n
		}
	}
	err := survey.AskOne(prompt, &strategy)
	return strategy, err
}

func PromptForHorizon() (string, error) {
	var horizon string
	prompt := &survey.Select{
		Message: "Select the holding horizon:",
		Options: Horizons,
		Default: DefaultHorizon,
	}
	err := survey.AskOne(prompt, &horizon)
	return horizon, err
}

func PromptForSector(sectors []string) (string, error) {
	var sector string
	prompt := &survey.Select{
		Message: "Select a sector:",
		Options: sectors,
	}
	err := survey.AskOne(prompt, &sector)
	return sector, err
}

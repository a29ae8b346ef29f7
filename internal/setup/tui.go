package setup

import (
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/solpaper/solpaper/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes config.yaml.
func RunTUI() error {
	listenAddr := config.DefaultListenAddr
	dataFile := config.DefaultDataFile
	tradeLogDir := config.DefaultTradeLogDir
	startingBalanceStr := config.DefaultStartingBalance
	solPriceStr := config.DefaultSolPriceUSD
	timeoutStr := "10s"
	confirm := false

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("SOLPAPER CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Paper trading, zero risk. Let's set it up.\n"))

	fmt.Println(stepStyle.Render("STEP 1: SERVER"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("host:port the command API listens on").
				Value(&listenAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 2: STORAGE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account snapshot file").
				Description("JSON file holding all virtual accounts").
				Value(&dataFile),
			huh.NewInput().
				Title("Trade journal directory").
				Description("WAL directory for the trade history").
				Value(&tradeLogDir),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 3: TRADING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting balance (SOL)").
				Description("virtual SOL granted to every new user").
				Value(&startingBalanceStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("SOL price (USD)").
				Description("fixed conversion rate used for all trades").
				Value(&solPriceStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Market data request timeout").
				Description("e.g. 10s").
				Value(&timeoutStr).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	startingBalance, _ := decimal.NewFromString(startingBalanceStr)
	solPrice, _ := decimal.NewFromString(solPriceStr)
	timeout, _ := time.ParseDuration(timeoutStr)

	cfg := config.Config{
		ListenAddr:      listenAddr,
		DataFile:        dataFile,
		TradeLogDir:     tradeLogDir,
		StartingBalance: startingBalance,
		SolPriceUSD:     solPrice,
		RequestTimeout:  timeout,
	}

	fmt.Println(stepStyle.Render("STEP 4: CONFIRM"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write config.yaml?").
				Description(fmt.Sprintf("listen %s, snapshot %s, %s SOL start, rate $%s",
					listenAddr, dataFile, startingBalance.String(), solPrice.String())).
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		fmt.Println("Aborted, nothing written.")
		return nil
	}

	if err := cfg.Write("config.yaml"); err != nil {
		return err
	}
	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("config.yaml written. Start with: solpaper --config config.yaml"))
	return nil
}

func validateDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a decimal number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateDuration(s string) error {
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("must be a duration like 10s")
	}
	return nil
}

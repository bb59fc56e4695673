package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"riskengine/internal/engine"
	"riskengine/pkg/types"
)

var orderSeq, tradeSeq, cancelSeq uint64

// Repl opens an interactive readline session against eng, for manually
// exercising the engine without standing up a live ingest adapter.
func Repl(ctx context.Context, eng *engine.Engine) {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("order", readline.PcItem("buy"), readline.PcItem("sell")),
		readline.PcItem("trade"),
		readline.PcItem("cancel"),
		readline.PcItem("tick"),
		readline.PcItem("rules"),
		readline.PcItem("rule"),
		readline.PcItem("diagnostics"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "riskctl> ",
		HistoryFile:     "/tmp/riskctl_history",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Printf("failed to create readline: %v", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}

		switch strings.ToLower(parts[0]) {
		case "order":
			handleOrderCommand(ctx, eng, parts)
		case "trade":
			handleTradeCommand(ctx, eng, parts)
		case "cancel":
			handleCancelCommand(ctx, eng, parts)
		case "tick":
			handleTickCommand(eng, parts)
		case "rules":
			handleRulesCommand(eng)
		case "rule":
			handleRuleCommand(eng, parts)
		case "diagnostics":
			handleDiagnosticsCommand(eng)
		case "help":
			printReplHelp()
		case "exit", "quit":
			return
		default:
			fmt.Println("Unknown command. Type 'help' for available commands.")
		}
	}
}

func printReplHelp() {
	fmt.Print(`Commands:
  order <buy|sell> <account> <contract> <price> <volume>   - submit an order
  trade <account> <contract> <price> <volume>               - submit a trade
  cancel <account> <contract> <volume>                      - submit a cancel
  tick [unix_nanos]                                          - advance the engine clock
  rules                                                      - list configured rule names
  rule <name>                                                - show one rule's name
  diagnostics                                                - print metrics and suspended subjects
  exit                                                       - leave the repl
`)
}

func handleOrderCommand(ctx context.Context, eng *engine.Engine, parts []string) {
	if len(parts) < 6 {
		fmt.Println("Usage: order <buy|sell> <account> <contract> <price> <volume>")
		return
	}

	var dir types.Direction
	switch strings.ToLower(parts[1]) {
	case "buy":
		dir = types.BID
	case "sell":
		dir = types.ASK
	default:
		fmt.Println("Error: side must be 'buy' or 'sell'")
		return
	}

	price, volume, err := parsePriceVolume(parts[4], parts[5])
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	orderSeq++
	o := types.Order{
		OrderID:    orderSeq,
		AccountID:  parts[2],
		ContractID: parts[3],
		Direction:  dir,
		Price:      price,
		Volume:     volume,
		Timestamp:  uint64(time.Now().UnixNano()),
	}
	if err := eng.OnOrder(ctx, o); err != nil {
		fmt.Println("rejected:", err)
		return
	}
	fmt.Printf("order %d accepted\n", o.OrderID)
}

func handleTradeCommand(ctx context.Context, eng *engine.Engine, parts []string) {
	if len(parts) < 5 {
		fmt.Println("Usage: trade <account> <contract> <price> <volume>")
		return
	}

	price, volume, err := parsePriceVolume(parts[3], parts[4])
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	tradeSeq++
	t := types.Trade{
		TradeID:    tradeSeq,
		AccountID:  parts[1],
		ContractID: parts[2],
		Price:      price,
		Volume:     volume,
		Timestamp:  uint64(time.Now().UnixNano()),
	}
	if err := eng.OnTrade(ctx, t); err != nil {
		fmt.Println("rejected:", err)
		return
	}
	fmt.Printf("trade %d accepted\n", t.TradeID)
}

func handleCancelCommand(ctx context.Context, eng *engine.Engine, parts []string) {
	if len(parts) < 4 {
		fmt.Println("Usage: cancel <account> <contract> <volume>")
		return
	}

	volume, err := strconv.ParseInt(parts[3], 10, 32)
	if err != nil {
		fmt.Println("Error: volume must be an integer:", err)
		return
	}

	cancelSeq++
	c := types.Cancel{
		CancelID:   cancelSeq,
		AccountID:  parts[1],
		ContractID: parts[2],
		Volume:     int32(volume),
		Timestamp:  uint64(time.Now().UnixNano()),
	}
	if err := eng.OnCancel(ctx, c); err != nil {
		fmt.Println("rejected:", err)
		return
	}
	fmt.Printf("cancel %d accepted\n", c.CancelID)
}

func handleTickCommand(eng *engine.Engine, parts []string) {
	now := time.Now().UnixNano()
	if len(parts) >= 2 {
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			fmt.Println("Error: unix_nanos must be an integer:", err)
			return
		}
		now = n
	}
	eng.Tick(context.Background(), now)
	fmt.Println("ticked at", now)
}

func handleRulesCommand(eng *engine.Engine) {
	names := eng.RuleNames()
	if len(names) == 0 {
		fmt.Println("No rules configured")
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func handleRuleCommand(eng *engine.Engine, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: rule <name>")
		return
	}
	r, ok := eng.Rule(parts[1])
	if !ok {
		fmt.Printf("rule %q not found\n", parts[1])
		return
	}
	fmt.Printf("%s: %T\n", r.Name(), r)
}

func handleDiagnosticsCommand(eng *engine.Engine) {
	m := eng.Metrics()
	fmt.Printf("events: processed=%.0f malformed=%.0f dropped=%.0f\n", m.EventsProcessed, m.EventsMalformed, m.EventsDropped)
	fmt.Printf("latch: suspends=%.0f resumes=%.0f sink_failures=%.0f\n", m.LatchSuspends, m.LatchResumes, m.SinkFailures)

	entries := eng.LatchSnapshot()
	if len(entries) == 0 {
		fmt.Println("No suspended subjects")
		return
	}
	fmt.Println("Suspended:")
	for _, e := range entries {
		fmt.Printf("  %s %s %v\n", e.Subject, e.Family, e.State)
	}
}

func parsePriceVolume(priceStr, volumeStr string) (float64, int32, error) {
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("price must be a number: %w", err)
	}
	volume, err := strconv.ParseInt(volumeStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("volume must be an integer: %w", err)
	}
	return price, int32(volume), nil
}

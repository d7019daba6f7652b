// Send an Apple Push notification through every configured APNs connection,
// falling back from production to sandbox credentials per device.
//
//	apnspush [-params] <token> [<token2> [...]]
//	  -c file
//	        YAML configuration (default "apnshub.yaml")
//	  -f file
//	        JSON file with the send request
//	  -a text
//	        alert text (default "Hello!")
//	  -b badge
//	        badge number
//	  -i bundle
//	        app identifier the tokens belong to
//	  -v    verbose logging
//
//	Sample JSON file:
//	  {
//	    "data": {"alert": "message", "badge": 1, "content-available": 1},
//	    "expiration_time": 1700000000
//	  }
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kart-io/apnshub"
	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/config"
	"github.com/kart-io/apnshub/pkg/dispatch"
	"github.com/kart-io/apnshub/pkg/logger"
)

func main() {
	configFile := flag.String("c", "apnshub.yaml", "YAML configuration `file`")
	requestFile := flag.String("f", "", "JSON `file` with the send request")
	alert := flag.String("a", "Hello!", "alert `text`")
	badge := flag.Int("b", -1, "`badge` number")
	appID := flag.String("i", "", "app identifier (`bundle`) the tokens belong to")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "Send Apple Push notification\n")
		fmt.Fprintf(os.Stderr, "%s [-params] <token> [<token2> [...]]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*configFile, *requestFile, *alert, *badge, *appID, *verbose, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(configFile, requestFile, alert string, badge int, appID string, verbose bool, tokens []string) error {
	if len(tokens) == 0 {
		return fmt.Errorf("no tokens")
	}
	level := logger.Warn
	if verbose {
		level = logger.Debug
	}
	cfg, err := config.Load(configFile, config.WithLogger(logger.NewZerolog(os.Stderr, level)))
	if err != nil {
		return err
	}

	payload, err := loadPayload(requestFile, alert, badge)
	if err != nil {
		return err
	}
	recipients, err := parseRecipients(tokens, appID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub, err := apnshub.New(cfg)
	if err != nil {
		return err
	}
	defer hub.Shutdown(context.Background())

	batch, err := hub.Send(ctx, payload, recipients)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return err
	}
	if batch.Failed() > 0 {
		return fmt.Errorf("%d of %d notifications not transmitted, %d retryable",
			batch.Failed(), len(batch.Results), len(batch.Retryable()))
	}
	return nil
}

func loadPayload(file, alert string, badge int) (dispatch.Payload, error) {
	var p dispatch.Payload
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return p, fmt.Errorf("loading request file: %w", err)
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("parsing request file: %w", err)
		}
		return p, nil
	}
	if alert == "" {
		return p, fmt.Errorf("nothing to send")
	}
	p.Data = map[string]any{"alert": alert}
	if badge >= 0 {
		p.Data["badge"] = badge
	}
	return p, nil
}

func parseRecipients(tokens []string, appID string) ([]channel.Recipient, error) {
	recipients := make([]channel.Recipient, 0, len(tokens))
	for _, token := range tokens {
		raw, err := hex.DecodeString(strings.TrimSpace(token))
		if err != nil {
			return nil, fmt.Errorf("token %q is not hex: %w", token, err)
		}
		recipients = append(recipients, channel.Recipient{DeviceToken: raw, AppIdentifier: appID})
	}
	return recipients, nil
}

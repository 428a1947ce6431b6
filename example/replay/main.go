// Replay delivers every message in a directory to a running bounced over SMTP,
// then prints the daemon's CSV export.
//
//	go run ./example/replay -dir testdata/bounces -smtp 127.0.0.1:2025 -http http://127.0.0.1:3025
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.io/infrasutra/bouncecsv/internal/mailsource"
)

func main() {
	dir := flag.String("dir", ".", "directory of raw bounce messages")
	smtpAddr := flag.String("smtp", "127.0.0.1:2025", "bounced SMTP address")
	httpBase := flag.String("http", "http://127.0.0.1:3025", "bounced HTTP base URL")
	username := flag.String("user", "", "SMTP username when SMTP_AUTH_ENABLED is set")
	password := flag.String("pass", "", "SMTP password")
	flag.Parse()

	entries, err := mailsource.Directory(*dir).Load(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var auth sasl.Client
	if *username != "" {
		auth = sasl.NewPlainClient("", *username, *password)
	}

	sent := 0
	for _, entry := range entries {
		if entry.Err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", entry.Message.Name, entry.Err)
			continue
		}
		// Delivery status notifications use the null reverse-path.
		if err := smtp.SendMail(*smtpAddr, auth, "", []string{"bounces@localhost"}, bytes.NewReader(entry.Message.Raw)); err != nil {
			fmt.Fprintf(os.Stderr, "send %s: %v\n", entry.Message.Name, err)
			os.Exit(1)
		}
		sent++
	}
	fmt.Fprintf(os.Stderr, "sent %d messages\n", sent)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(*httpBase + "/api/bounces.csv")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

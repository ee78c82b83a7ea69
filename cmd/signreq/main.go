// Command signreq prints the headers a partner sends with a signed call.
//
//	signreq -key acme-key -secret acme-secret -method POST \
//	  -path /api/v1/partners/events -body '{"eventId":"E1","phone":"+254700000001","amount":100}'
//
// With -body - the body is read from stdin.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/baharkarakas/betsave-core/internal/auth"
)

func main() {
	key := flag.String("key", "", "partner api key")
	secret := flag.String("secret", "", "partner signing secret")
	method := flag.String("method", "POST", "HTTP method")
	path := flag.String("path", "/api/v1/partners/events", "request path including query")
	body := flag.String("body", "", "JSON body, or - for stdin")
	ts := flag.Int64("ts", 0, "timestamp in epoch ms (default now)")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "signreq: -secret is required")
		os.Exit(2)
	}

	raw := []byte(*body)
	if *body == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "signreq: read stdin:", err)
			os.Exit(1)
		}
		raw = b
	}
	canon, err := auth.CanonicalBody(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "signreq: body is not valid JSON:", err)
		os.Exit(1)
	}

	if *ts == 0 {
		*ts = time.Now().UnixMilli()
	}
	stamp := strconv.FormatInt(*ts, 10)

	if *key != "" {
		fmt.Printf("%s: %s\n", auth.HeaderAPIKey, *key)
	}
	fmt.Printf("%s: %s\n", auth.HeaderTimestamp, stamp)
	fmt.Printf("%s: %s\n", auth.HeaderSignature, auth.RequestSignature(*secret, stamp, *method, *path, canon))
}

// Command monitor-token issues a signed client token for servers started with -jwt-key,
// or with -hash prints a hashed entry for the server's token list.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/and161185/monitor/internal/auth"
)

func main() {
	key := flag.String("key", os.Getenv("MONITOR_JWT_KEY"), "HS256 signing key (default $MONITOR_JWT_KEY)")
	client := flag.String("client", "", "client token to embed as subject")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	hash := flag.Bool("hash", false, "print an argon2id entry for -client instead of a signed token")
	flag.Parse()

	if *hash {
		entry, err := auth.HashToken(*client)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash:", err)
			os.Exit(2)
		}
		fmt.Println(entry)
		return
	}
	if *key == "" || *client == "" || *ttl <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	tok, exp, err := auth.NewJWT([]byte(*key), 0).Issue(*client, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
	fmt.Fprintln(os.Stderr, "expires", exp.Format(time.RFC3339))
}

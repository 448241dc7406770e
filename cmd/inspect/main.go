package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"mesgd/pkg/logger"
	"mesgd/pkg/models"
	"mesgd/pkg/store"
)

// inspect dumps the contents of a data directory for debugging: the
// conversation index, one conversation's messages, or all status posts.
func main() {
	var (
		path   string
		conv   string
		kind   string
		pretty bool
	)
	flag.StringVar(&path, "db", "", "data directory to open")
	flag.StringVar(&kind, "kind", "conversations", "what to dump: conversations, messages, statuses")
	flag.StringVar(&conv, "conversation", "", "conversation id (required for -kind messages)")
	flag.BoolVar(&pretty, "pretty", false, "indent JSON output")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "-db required")
		os.Exit(2)
	}

	logger.Init("error")
	st, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer st.Close()

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}

	switch kind {
	case "conversations":
		err = st.IterPrefix([]byte("conv:"), func(key, value []byte) bool {
			var v json.RawMessage = append([]byte(nil), value...)
			_ = enc.Encode(map[string]any{"key": string(key), "value": v})
			return true
		})
	case "messages":
		if conv == "" {
			fmt.Fprintln(os.Stderr, "-conversation required for -kind messages")
			os.Exit(2)
		}
		err = st.IterPrefix(store.MsgPrefix(conv), func(_, value []byte) bool {
			var m models.Message
			if json.Unmarshal(value, &m) == nil {
				_ = enc.Encode(m)
			}
			return true
		})
	case "statuses":
		err = st.IterPrefix(store.StatusPrefix(), func(_, value []byte) bool {
			var p models.StatusPost
			if json.Unmarshal(value, &p) == nil {
				_ = enc.Encode(p)
			}
			return true
		})
	default:
		fmt.Fprintf(os.Stderr, "unknown kind %q\n", kind)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterate: %v\n", err)
		os.Exit(1)
	}
}

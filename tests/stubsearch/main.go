// Command stubsearch imitates just enough of the elasticsearch CLI for the
// end-to-end tests: it answers -Vv with a version line, writes the pid file
// and serves HTTP on the configured port until it is signaled.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "-Vv" {
		fmt.Println("Version: 7.10.2, Build: default/tar/747e1cc/2021-01-13T00:42:12.435326Z, JVM: 15.0.1")
		return
	}
	var pidFile string
	settings := map[string]string{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-p":
			i++
			pidFile = args[i]
		case "-E":
			i++
			if kv := strings.SplitN(args[i], "=", 2); len(kv) == 2 {
				settings[kv[0]] = kv[1]
			}
		}
	}
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0600); err != nil {
			log.Fatalf("Unable to write pid file: %v", err)
		}
	}
	port := settings["http.port"]
	if port == "" {
		log.Fatal("http.port not set")
	}
	// Lets tests exercise the startup-timeout path
	if settings["index.store.type"] == "hold-readiness" {
		select {}
	}
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			w.Header().Set("X-Seen-Authorization", auth)
		}
		fmt.Fprintf(w, `{"cluster_name":%q,"version":{"number":"7.10.2"}}`, settings["cluster.name"])
	})
	log.Fatal(http.ListenAndServe("127.0.0.1:"+port, nil))
}

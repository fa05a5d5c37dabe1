package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

func main() {
	baseURL := flag.String("server", envOr("ICEDL_SERVER_URL", "http://127.0.0.1:8080"), "URL du serveur (ex: http://127.0.0.1:8080)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Timeout HTTP")
	stacked := flag.Bool("stacked", false, "Source en plusieurs parts (resolve)")
	play := flag.Bool("play", false, "Rend le chemin local jouable après bufferisation (download)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	client := &http.Client{Timeout: *timeout}
	api := *baseURL + "/api/v1"

	switch args[0] {
	case "health":
		get(client, api+"/health")
	case "version":
		get(client, api+"/version")
	case "mirrors":
		requireArgs(args, 2, "mirrors <url>")
		post(client, api+"/mirrors", map[string]any{"url": args[1]})
	case "metadata":
		get(client, api+"/metadata")
	case "sources":
		requireArgs(args, 2, "sources <dvdrip|hd720p|dvdscreener|r5r6>")
		get(client, api+"/sources/"+args[1])
	case "captcha":
		requireArgs(args, 2, "captcha <answer>")
		post(client, api+"/captcha", map[string]any{"answer": args[1]})
	case "resolve":
		requireArgs(args, 3, "resolve <name> <url>")
		post(client, api+"/resolve", map[string]any{"name": args[1], "url": args[2], "stacked": *stacked})
	case "download":
		requireArgs(args, 3, "download <name> <url>")
		post(client, api+"/downloads", map[string]any{"sourceName": args[1], "url": args[2], "play": *play})
	case "downloads":
		get(client, api+"/downloads")
	case "cancel":
		post(client, api+"/downloads/cancel", map[string]any{})
	case "dlinfo":
		post(client, api+"/downloads/info", map[string]any{})
	case "watched":
		requireArgs(args, 3, "watched <position> <partDuration> [partDuration…]")
		pos, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Position invalide:", args[1])
			os.Exit(2)
		}
		durations := make([]float64, 0, len(args)-2)
		for _, a := range args[2:] {
			d, err := strconv.ParseFloat(a, 64)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Durée invalide:", a)
				os.Exit(2)
			}
			durations = append(durations, d)
		}
		post(client, api+"/playback/watched", map[string]any{"position": pos, "partDurations": durations})
	case "settings":
		get(client, api+"/settings")
	default:
		fmt.Fprintln(os.Stderr, "Commande inconnue:", args[0])
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: icedl [health|version|mirrors|metadata|sources|captcha|resolve|download|downloads|cancel|dlinfo|watched|settings]")
	os.Exit(2)
}

func requireArgs(args []string, n int, form string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "Usage: icedl "+form)
		os.Exit(2)
	}
}

func get(client *http.Client, url string) {
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
	show(resp)
}

func post(client *http.Client, url string, body map[string]any) {
	b, _ := json.Marshal(body)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
	show(resp)
}

func show(resp *http.Response) {
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	var pretty any
	if err := json.Unmarshal(b, &pretty); err == nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(pretty)
		if resp.StatusCode >= 400 {
			os.Exit(1)
		}
		return
	}

	os.Stdout.Write(b)
	os.Stdout.Write([]byte("\n"))
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

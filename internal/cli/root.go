// Package cli implements the skypilot command line.
package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "list":
		return runList(args[1:])
	case "retrieve", "get":
		return runRetrieve(args[1:])
	case "create":
		return runCreate(args[1:])
	case "remix":
		return runRemix(args[1:])
	case "download":
		return runDownload(args[1:])
	case "delete":
		return runDelete(args[1:])
	case "currency":
		return runCurrency(args[1:])
	case "language":
		return runLanguage(args[1:])
	case "export":
		return runExport(args[1:])
	case "serve":
		printServeHint()
		return nil
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("skypilot: create, watch and price Sora video jobs")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  skypilot list [--status completed,failed] [--limit N] [--order asc|desc] [--json]")
	fmt.Println("  skypilot retrieve --id <video_id> [--json]")
	fmt.Println("  skypilot create --prompt <text> [--model sora-2] [--size 720x1280] [--seconds 4] [--watch]")
	fmt.Println("  skypilot remix --id <video_id> --prompt <text> [--watch]")
	fmt.Println("  skypilot download --id <video_id> [--choice video_and_thumbnail] [--output <dir>]")
	fmt.Println("  skypilot delete --id <video_id> [--yes]")
	fmt.Println("  skypilot currency [code]")
	fmt.Println("  skypilot language [code]")
	fmt.Println("  skypilot export [--output <file>] [--status ...]")
	fmt.Println("  skypilot serve")
	fmt.Println()
	fmt.Println("Watch flags (create, remix):")
	fmt.Println("  --watch            poll until the video finishes")
	fmt.Println("  --interval 5s      poll interval")
	fmt.Println("  --download <kind>  fetch assets when done (video, thumbnail, spritesheet, video_and_thumbnail, all)")
	fmt.Println("  --output <dir>     download destination")
	fmt.Println("  --no-download      skip the automatic download")
	fmt.Println("  --no-sound         skip the completion chime")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  OPENAI_API_KEY     required for every remote call")
	fmt.Println("  SKYPILOT_HOME      settings and cache directory (default ~/.skypilot)")
}

func printServeHint() {
	fmt.Println("The HTTP and WebSocket API ships as a separate binary:")
	fmt.Println("  go run ./cmd/server")
	fmt.Println("It reads the same environment (OPENAI_API_KEY, SKYPILOT_HOME, REDIS_*, JWT_SECRET).")
}

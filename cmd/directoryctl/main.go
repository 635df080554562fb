package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/codex-employee-directory/internal/adapters/grpc/handler"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	var (
		addr    = flag.String("addr", "", "directory server address (defaults to DIRECTORY_ADDR env or localhost:50051)")
		timeout = flag.Duration("timeout", 15*time.Second, "timeout for a single action")
	)
	flag.Parse()

	action := "view"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}
	var args []string
	if flag.NArg() > 1 {
		args = flag.Args()[1:]
	}

	conn, err := grpc.NewClient(effectiveAddr(*addr),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := runAction(ctx, handler.NewDirectoryClient(conn), os.Stdout, action, args); err != nil {
		log.Fatalf("%s failed: %v", action, err)
	}
}

func effectiveAddr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("DIRECTORY_ADDR"); env != "" {
		return env
	}
	return "localhost:50051"
}

func runAction(ctx context.Context, client *handler.DirectoryClient, out io.Writer, action string, args []string) error {
	var (
		result any
		err    error
	)

	switch action {
	case "view":
		result, err = client.GetView(ctx)
	case "load":
		result, err = client.Load(ctx, false)
	case "refresh":
		result, err = client.Load(ctx, true)
	case "search":
		result, err = client.SetSearchQuery(ctx, strings.Join(args, " "))
	case "sort":
		if len(args) != 1 {
			return fmt.Errorf("sort requires exactly one field")
		}
		result, err = client.SetSortField(ctx, args[0])
	case "page":
		ids, perr := parseIDs(args, 1)
		if perr != nil {
			return perr
		}
		result, err = client.SetPage(ctx, ids[0])
	case "get":
		ids, perr := parseIDs(args, 1)
		if perr != nil {
			return perr
		}
		result, err = client.GetEmployee(ctx, ids[0])
	case "delete":
		ids, perr := parseIDs(args, 1)
		if perr != nil {
			return perr
		}
		err = client.DeleteEmployee(ctx, ids[0])
		result = map[string]int{"deleted": ids[0]}
	case "bulk-delete":
		ids, perr := parseIDs(args, 0)
		if perr != nil {
			return perr
		}
		result, err = client.BulkDeleteEmployees(ctx, ids)
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// parseIDs は正の整数の引数を解釈します。exact が 0 の場合は 1 つ以上を要求します。
func parseIDs(args []string, exact int) ([]int, error) {
	if exact > 0 && len(args) != exact {
		return nil, fmt.Errorf("expected %d argument(s), got %d", exact, len(args))
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one id is required")
	}
	ids := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

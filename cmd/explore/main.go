package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"lattice.dev/lattice/common/id"
	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/graph/memory"
	"lattice.dev/lattice/graph/sqlite"
)

// explore is an interactive shell over a local graph engine. It speaks
// the same graph API as the server, minus the journal and the stream,
// so engine behavior can be poked at without any infrastructure.
func main() {
	ctx := context.Background()

	// Load .env file (ignore error if not found)
	_ = godotenv.Load()

	if err := id.Init(3); err != nil {
		fmt.Fprintf(os.Stderr, "id generator: %v\n", err)
		os.Exit(1)
	}

	engineName := getEnv("LATTICE_ENGINE", "memory")

	var (
		g     *graph.Graph
		admin graph.NodeAdmin
	)
	switch engineName {
	case "memory":
		eng := memory.New()
		g = graph.New(eng, eng)
		admin = eng
	case "sqlite":
		eng, err := sqlite.New(ctx, sqlite.Config{Path: getEnv("SQLITE_PATH", ":memory:")})
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqlite engine: %v\n", err)
			os.Exit(1)
		}
		defer eng.Close()
		g = graph.New(eng, eng)
		admin = eng
	default:
		fmt.Fprintf(os.Stderr, "unsupported engine %q (use memory or sqlite)\n", engineName)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Explore shell ready (engine=%s)\n", engineName)
	fmt.Fprintln(os.Stderr, "Commands: node, link, ls, walk, quit ('help' for details)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" || line == "q" {
			break
		}

		if err := run(ctx, g, admin, strings.Fields(line)); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func run(ctx context.Context, g *graph.Graph, admin graph.NodeAdmin, args []string) error {
	switch args[0] {
	case "help":
		fmt.Println("node <label>                create a node, print its ref")
		fmt.Println("link <from> <type> <to>     create a relationship")
		fmt.Println("ls <ref> [type]             list relationships of a node")
		fmt.Println("walk <ref> <type> [depth]   breadth-first walk, one line per node")
		return nil

	case "node":
		if len(args) != 2 {
			return fmt.Errorf("usage: node <label>")
		}
		ref, err := admin.CreateNode(ctx, args[1], nil)
		if err != nil {
			return err
		}
		fmt.Println(ref)
		return nil

	case "link":
		if len(args) != 4 {
			return fmt.Errorf("usage: link <from> <type> <to>")
		}
		set, err := g.Related(graph.NodeRef(args[1]), args[2])
		if err != nil {
			return err
		}
		rel, err := set.New(ctx, graph.NodeRef(args[3]))
		if err != nil {
			return err
		}
		fmt.Println(rel.Ref())
		return nil

	case "ls":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("usage: ls <ref> [type]")
		}
		view := g.Relationships(graph.NodeRef(args[1])).Both()
		if len(args) == 3 {
			view = view.OfType(args[2])
		}
		count := 0
		for rel, err := range view.All(ctx) {
			if err != nil {
				return err
			}
			info, err := rel.Describe(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s -> %s  [%s]\n", rel.Ref(), info.Start, info.End, info.Type)
			count++
		}
		fmt.Printf("%d relationship(s)\n", count)
		return nil

	case "walk":
		if len(args) < 3 || len(args) > 4 {
			return fmt.Errorf("usage: walk <ref> <type> [depth]")
		}
		depth := 1
		if len(args) == 4 {
			n, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("bad depth %q", args[3])
			}
			depth = n
		}
		walk, err := g.Walk(graph.NodeRef(args[1]), args[2], graph.WithDepth(depth))
		if err != nil {
			return err
		}
		count := 0
		for node, err := range walk.Nodes(ctx) {
			if err != nil {
				return err
			}
			fmt.Printf("%s  (%s)\n", node.Ref, node.Label)
			count++
		}
		fmt.Printf("%d node(s)\n", count)
		return nil

	default:
		return fmt.Errorf("unknown command %q (try 'help')", args[0])
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/defistate/defistate-amm-go/pair"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/defistate/defistate-amm-go/router"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/streams/jsonrpc/client"
	"github.com/defistate/defistate-amm-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/rpc"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"

	DefaultClientStateBufferSize = 100
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

// SafeView is a thread-safe container for the latest mirrored view.
type SafeView struct {
	mu   sync.RWMutex
	view *state.View
}

func (s *SafeView) Update(v *state.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

func (s *SafeView) Get() *state.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

type console struct {
	ctx    context.Context
	view   *SafeView
	rpc    *rpc.Client
	reader *bufio.Reader
}

func main() {
	streamURL := flag.String("url", "ws://localhost:8545/ws", "WebSocket URL of the state stream.")
	logPath := flag.String("log", "console.log", "File the console logs to.")
	flag.Parse()

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Failed to open log file: %v", err))
	}
	defer logFile.Close()
	rootLogger := slog.New(slog.NewJSONHandler(logFile, nil))

	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check " + *logPath + " for details." + Reset)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream, err := client.NewClient(ctx, client.Config{
		URL:        *streamURL,
		Logger:     rootLogger.With("component", "jsonrpc-client"),
		BufferSize: DefaultClientStateBufferSize,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize Client", "url", *streamURL, "error", err)
		closeApp()
	}

	rpcClient, err := rpc.DialContext(ctx, *streamURL)
	if err != nil {
		rootLogger.Error("Failed to dial RPC", "url", *streamURL, "error", err)
		closeApp()
	}
	defer rpcClient.Close()

	c := &console{
		ctx:    ctx,
		view:   &SafeView{},
		rpc:    rpcClient,
		reader: bufio.NewReader(os.Stdin),
	}

	fmt.Println(Green + "Starting AMM console..." + Reset)
	fmt.Println("Logs are being written to '" + *logPath + "'")
	go c.run()

	for {
		select {
		case v := <-stream.State():
			c.view.Update(v)
		case err := <-stream.Err():
			rootLogger.Error("Fatal client error", "error", err)
			closeApp()
		case <-ctx.Done():
			fmt.Println("\n" + Yellow + "Shutting down..." + Reset)
			return
		}
	}
}

// run handles user input and display.
func (c *console) run() {
	time.Sleep(500 * time.Millisecond)

	for {
		if c.ctx.Err() != nil {
			return
		}

		printMenu()
		fmt.Print(Bold + "Enter selection: " + Reset)
		input, err := c.reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}

		c.handleCommand(strings.TrimSpace(input))

		fmt.Println("\n" + Gray + "[Press Enter to continue]" + Reset)
		c.reader.ReadString('\n')
	}
}

func printMenu() {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(Bold + "AMM CONSOLE" + Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s1.%s Status\n", Cyan, Reset)
	fmt.Printf(" %s2.%s Pool Summary\n", Cyan, Reset)
	fmt.Printf(" %s3.%s Find Pool  %s(by Asset Pair)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s4.%s Find Pools %s(by Asset)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s5.%s Watch Pool %s(Live Monitor)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s6.%s Route      %s(Multi-hop)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s7.%s Swap       %s(Exact Input)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %sq.%s Quit\n", Red, Reset)
	fmt.Println("")
}

func (c *console) handleCommand(input string) {
	view := c.view.Get()

	if view == nil && input != "q" {
		fmt.Println("\n" + Yellow + "[INFO] Waiting for first state update... (Check connection/logs)" + Reset)
		return
	}

	switch input {
	case "1":
		printStatus(view)
	case "2":
		printPoolSummary(view)
	case "3":
		c.findPool(view)
	case "4":
		c.findPoolsByAsset(view)
	case "5":
		c.watchPool()
	case "6":
		c.findRoute(view)
	case "7":
		c.swap(view)
	case "q":
		fmt.Println(Yellow + "Exiting..." + Reset)
		os.Exit(0)
	default:
		fmt.Println(Red + "Unknown command." + Reset)
	}
}

// --- COMMAND HANDLERS ---

func printStatus(view *state.View) {
	ts := time.Unix(0, int64(view.Timestamp)).Format("15:04:05")
	fmt.Printf("\n%sSTATUS  ::%s Sequence %s#%d%s | Pools %s%d%s | Time %s%s%s\n",
		Green, Reset,
		Bold, view.Sequence, Reset,
		Bold, len(view.Pools), Reset,
		Bold, ts, Reset,
	)
}

func printPoolSummary(view *state.View) {
	header("POOL SUMMARY")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "PAIR\tRESERVE LOW\tRESERVE HIGH\tLP SUPPLY\tFEE\t")
	fmt.Fprintln(w, "----\t-----------\t------------\t---------\t---\t")
	drained := 0
	for _, p := range view.Pools {
		if p.LPSupply == 0 {
			drained++
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t\n", p.Key, p.ReserveLow, p.ReserveHigh, p.LPSupply, p.FeePoints)
	}
	w.Flush()

	fmt.Printf("\n%sDrained Pools: %d%s\n", Bold, drained, Reset)
}

func (c *console) findPool(view *state.View) {
	fmt.Print("\n" + Bold + "[Find Pool] Enter two assets (e.g. USDC WETH): " + Reset)
	key, ok := c.readKey()
	if !ok {
		return
	}
	printPool(view, key)
}

func (c *console) findPoolsByAsset(view *state.View) {
	fmt.Print("\n" + Bold + "[Find Pools] Enter Asset: " + Reset)
	asset := pair.AssetID(c.readLine())
	if asset == "" {
		return
	}

	header(strings.ToUpper(fmt.Sprintf("POOLS FOR %s", asset)))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "PAIRED ASSET\tRESERVE\tPAIRED RESERVE\tPOOL ID\t")
	fmt.Fprintln(w, "------------\t-------\t--------------\t-------\t")
	found := 0
	for _, p := range view.Pools {
		if !p.Key.Contains(asset) {
			continue
		}
		found++
		paired, reserve, pairedReserve := p.Key.High, p.ReserveLow, p.ReserveHigh
		if p.Key.High == asset {
			paired, reserve, pairedReserve = p.Key.Low, p.ReserveHigh, p.ReserveLow
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t\n", paired, reserve, pairedReserve, p.ID.Hex())
	}
	w.Flush()

	if found == 0 {
		fmt.Println(Yellow + "[INFO] No pools trade this asset." + Reset)
	}
}

func (c *console) watchPool() {
	fmt.Print("\n" + Bold + "[Watch Pool] Enter two assets (e.g. USDC WETH): " + Reset)
	key, ok := c.readKey()
	if !ok {
		return
	}

	fmt.Println(Green + "Starting Live Watch... (Press 'Enter' to stop)" + Reset)
	time.Sleep(1 * time.Second)

	stopCh := make(chan struct{})
	go func() {
		c.reader.ReadString('\n')
		close(stopCh)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq uint64
	first := true
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			view := c.view.Get()
			if view == nil || (!first && view.Sequence <= lastSeq) {
				continue
			}
			first = false
			lastSeq = view.Sequence

			fmt.Print("\033[H\033[2J")
			fmt.Printf(Bold+"\n--- LIVE MONITOR (Sequence: %d) ---\n"+Reset, view.Sequence)
			fmt.Println(Gray + "Press ENTER to return to menu." + Reset)
			printPool(view, key)
		}
	}
}

func (c *console) findRoute(view *state.View) {
	header("ROUTE FINDER")

	fmt.Print(Bold + "1. Enter Input Asset: " + Reset)
	assetIn := pair.AssetID(c.readLine())
	fmt.Print(Bold + "2. Enter Output Asset: " + Reset)
	assetOut := pair.AssetID(c.readLine())
	fmt.Print(Bold + "3. Enter Input Amount: " + Reset)
	amountIn, ok := c.readAmount()
	if !ok {
		return
	}
	fmt.Printf("%s4. Max Hops [%d]: %s", Bold, router.DefaultMaxHops, Reset)
	maxHops := router.DefaultMaxHops
	if s := c.readLine(); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fmt.Println(Red + "Invalid hop count." + Reset)
			return
		}
		maxHops = n
	}

	fmt.Printf("\nRouting %d %s... calculating best path over sequence %d...\n", amountIn, assetIn, view.Sequence)

	path, amountOut, err := router.NewGraph(*view).FindBestSwapPath(assetIn, assetOut, amountIn, maxHops)
	if err != nil {
		fmt.Printf(Red+"[ERROR] Pathfinding failed: %v%s\n", err, Reset)
		return
	}
	printRouteResult(path, amountOut, assetOut)
}

func printRouteResult(path []router.Hop, amountOut uint64, assetOut pair.AssetID) {
	header("BEST ROUTE FOUND")
	fmt.Printf("%sEst. Output:%s %d %s\n\n", Bold, Reset, amountOut, assetOut)

	fmt.Println(Bold + "Route Path:" + Reset)
	for i, hop := range path {
		fmt.Printf(" [ Step %d ]\n", i+1)
		fmt.Printf("  %s%-6s%s %d\n", Cyan, hop.AssetIn, Reset, hop.AmountIn)
		fmt.Printf("    %s|%s\n", Gray, Reset)
		fmt.Printf("    %s+---[%s%s %s]--->%s  %s%-6s%s %d\n",
			Gray,
			Reset, hop.Key, hop.PoolID.TerminalString(),
			Reset,
			Cyan, hop.AssetOut, Reset, hop.AmountOut)
		fmt.Println("")
	}
}

func (c *console) swap(view *state.View) {
	header("SWAP")

	fmt.Print(Bold + "1. Enter Input Asset: " + Reset)
	assetIn := pair.AssetID(c.readLine())
	fmt.Print(Bold + "2. Enter Output Asset: " + Reset)
	assetOut := pair.AssetID(c.readLine())
	key, err := pair.Canonicalize(assetIn, assetOut)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	fmt.Print(Bold + "3. Enter Input Amount: " + Reset)
	amountIn, ok := c.readAmount()
	if !ok {
		return
	}

	d, method := pool.LowToHigh, "amm_swapExactLowForHigh"
	if key.Flipped(assetIn) {
		d, method = pool.HighToLow, "amm_swapExactHighForLow"
	}

	var quote server.SwapResult
	if err := c.rpc.CallContext(c.ctx, &quote, "amm_quote", key, d.String(), amountIn); err != nil {
		fmt.Printf(Red+"[ERROR] Quote failed: %v%s\n", err, Reset)
		return
	}
	fmt.Printf("%sQuoted Output:%s %d %s\n", Bold, Reset, quote.AmountOut, assetOut)
	fmt.Print(Bold + "4. Minimum Output [quoted]: " + Reset)
	minOut := quote.AmountOut
	if s := c.readLine(); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			fmt.Println(Red + "Invalid amount." + Reset)
			return
		}
		minOut = n
	}

	var res server.SwapResult
	if err := c.rpc.CallContext(c.ctx, &res, method, key, amountIn, minOut); err != nil {
		fmt.Printf(Red+"[ERROR] Swap failed: %v%s\n", err, Reset)
		return
	}
	fmt.Printf("%sSwapped:%s %d %s -> %d %s\n", Green, Reset, amountIn, assetIn, res.AmountOut, assetOut)
}

// --- HELPERS ---

func (c *console) readLine() string {
	input, _ := c.reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func (c *console) readKey() (pair.Key, bool) {
	fields := strings.Fields(c.readLine())
	if len(fields) != 2 {
		fmt.Println(Red + "[ERROR] Expected exactly two assets." + Reset)
		return pair.Key{}, false
	}
	key, err := pair.Canonicalize(pair.AssetID(fields[0]), pair.AssetID(fields[1]))
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return pair.Key{}, false
	}
	fmt.Printf(Gray+"Searching for Pair: %s...%s\n", key, Reset)
	return key, true
}

func (c *console) readAmount() (uint64, bool) {
	n, err := strconv.ParseUint(c.readLine(), 10, 64)
	if err != nil || n == 0 {
		fmt.Println(Red + "Invalid amount format." + Reset)
		return 0, false
	}
	return n, true
}

func printPool(view *state.View, key pair.Key) {
	p, ok := view.Pool(key)
	if !ok {
		fmt.Println(Red + "[NOT FOUND] No pool for this pair." + Reset)
		return
	}

	printField := func(name string, value any) {
		fmt.Printf("  %s%-15s%s %v\n", Gray, name+":", Reset, value)
	}

	header(strings.ToUpper(p.Key.String()))
	printField("Pool ID", p.ID.Hex())
	printField("Reserve "+string(p.Key.Low), p.ReserveLow)
	printField("Reserve "+string(p.Key.High), p.ReserveHigh)
	printField("LP Supply", p.LPSupply)
	printField("Fee (bps)", p.FeePoints)
	if p.ReserveLow > 0 {
		printField("Price", fmt.Sprintf("%s%.6f%s %s per %s", Yellow, float64(p.ReserveHigh)/float64(p.ReserveLow), Reset, p.Key.High, p.Key.Low))
	}
}

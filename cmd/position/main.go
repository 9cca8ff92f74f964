package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"perp-mm-go/config"
	"perp-mm-go/gateway"
	"perp-mm-go/inventory"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "", "合约（如 ETH-PERP），缺省取配置文件")
	flag.Parse()

	cfg, err := config.LoadBase(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	filter := strings.ToUpper(strings.TrimSpace(*symbol))
	if filter == "" {
		filter = cfg.Symbol
	}

	client := gateway.NewFTXClient(cfg.Gateway.BaseURL, gateway.Signer{
		APIKey:     cfg.Gateway.APIKey,
		Secret:     cfg.Gateway.APISecret,
		Subaccount: cfg.Gateway.Subaccount,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	all, err := client.FetchPositions(ctx)
	if err != nil {
		log.Fatalf("查询持仓失败: %v", err)
	}
	p := inventory.Pick(all, filter)
	fmt.Printf("%s net=%.6f entry=%.4f realized=%.4f unrealized=%.4f\n",
		p.Instrument, p.NetSize, p.EntryPrice, p.RealizedPnl, p.UnrealizedPnl)

	open, err := client.OpenOrders(ctx, filter)
	if err != nil {
		log.Fatalf("查询挂单失败: %v", err)
	}
	fmt.Printf("open orders: %d\n", len(open))
	for _, o := range open {
		fmt.Printf("  id=%s side=%s price=%.4f size=%.6f clientId=%s\n", o.ID, o.Side, o.Price, o.Quantity, o.ClientID)
	}
}

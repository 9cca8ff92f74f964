package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"perp-mm-go/config"
	"perp-mm-go/gateway"
	"perp-mm-go/inventory"
	"perp-mm-go/order"
)

// 撤销某合约的全部挂单并打印剩余仓位；不会主动平仓。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "", "合约（如 ETH-PERP），缺省取配置文件")
	flag.Parse()

	cfg, err := config.LoadBase(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	sym := strings.ToUpper(strings.TrimSpace(*symbol))
	if sym == "" {
		sym = cfg.Symbol
	}
	if sym == "" || cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		log.Fatal("需要 symbol 以及 gateway.apiKey/apiSecret（或 MM_GATEWAY_API_KEY/MM_GATEWAY_API_SECRET）")
	}

	client := gateway.NewFTXClient(cfg.Gateway.BaseURL, gateway.Signer{
		APIKey:     cfg.Gateway.APIKey,
		Secret:     cfg.Gateway.APISecret,
		Subaccount: cfg.Gateway.Subaccount,
	})
	zl, _ := zap.NewDevelopment()
	defer zl.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("canceling open orders on %s...\n", sym)
	ctrl := order.NewController(order.ControllerConfig{Symbol: sym}, client, nil, zl, nil)
	n, err := ctrl.CancelOpen(ctx)
	if err != nil {
		log.Printf("部分撤单失败: %v", err)
	}
	fmt.Printf("canceled %d orders\n", n)

	all, err := client.FetchPositions(ctx)
	if err != nil {
		log.Fatalf("查询仓位失败: %v", err)
	}
	p := inventory.Pick(all, sym)
	fmt.Printf("position %s net=%.6f entry=%.4f\n", sym, p.NetSize, p.EntryPrice)
}

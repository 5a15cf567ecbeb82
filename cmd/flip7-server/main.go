package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"flip7-lite/internal/config"
	"flip7-lite/internal/gateway"
	"flip7-lite/internal/httpapi"
	"flip7-lite/internal/lobby"
	"flip7-lite/internal/logger"
	"flip7-lite/internal/room"
	"flip7-lite/internal/stats"
)

func main() {
	cfg := config.FromEnv()
	if err := logger.Init(cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Get()

	statsSvc, err := stats.NewService(cfg.StatsDriver, cfg.StatsDSN)
	if err != nil {
		log.Fatal("stats init failed", zap.Error(err))
	}
	defer statsSvc.Close()

	lby := lobby.New(cfg)
	defer lby.Close()
	lby.AddGameEndHook(func(info room.GameEndInfo) {
		rec := stats.MatchRecord{
			RoomCode:   info.RoomCode,
			Rounds:     info.Rounds,
			WinnerName: info.WinnerName,
			FinishedAt: info.FinishedAt,
		}
		for _, p := range info.Players {
			rec.Players = append(rec.Players, stats.PlayerLine{
				PlayerID: p.PlayerID,
				Name:     p.Name,
				Score:    p.Score,
				IsAI:     p.IsAI,
				Won:      p.Won,
			})
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := statsSvc.RecordMatch(ctx, rec); err != nil {
			log.Warn("match record failed", zap.String("room", info.RoomCode), zap.Error(err))
		}
	})

	matchmaker := lobby.NewMatchmaker(lby)
	gw := gateway.New(lby, matchmaker)
	lby.Bind(gw.SendToSession)

	router := httpapi.New(statsSvc, gw.HandleWS).Router()

	log.Info("server starting",
		zap.String("addr", cfg.ListenAddr),
		zap.String("stats", cfg.StatsDriver))
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

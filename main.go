package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/starwit/sae-geo-mapper/config"
	"github.com/starwit/sae-geo-mapper/geomapper"
	"github.com/starwit/sae-geo-mapper/logger"
	"github.com/starwit/sae-geo-mapper/monitor"
	"github.com/starwit/sae-geo-mapper/register"
	"github.com/starwit/sae-geo-mapper/sae"
	"github.com/starwit/sae-geo-mapper/stream"
)

func GetOutboundIP() (string, error) {
	// 8.8.8.8 is only used to pick a routing path for the local egress IP;
	// no packet is actually sent, so this works without connectivity.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP.String(), nil
}

func main() {
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
	}
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Println("Failed to load config:", err)
		os.Exit(1)
	}
	if err := logger.InitProduction(cfg.LogLevel); err != nil {
		fmt.Println("Failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	fmt.Println(strings.Repeat("#", 64))
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
	fmt.Println("Kafka Brokers:", cfg.Kafka.BootstrapServers)
	fmt.Println("Monitoring Port:", cfg.MonitoringPort)
	fmt.Println("Configured Cameras:", len(cfg.Cameras))
	fmt.Println(strings.Repeat("#", 64))

	mapper, err := geomapper.New(cfg)
	if err != nil {
		fmt.Println("Failed to set up geo mapper:", err)
		os.Exit(1)
	}

	streamIDs := make([]string, 0, len(cfg.Cameras))
	streamInfos := make([]monitor.StreamInfo, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		streamIDs = append(streamIDs, cam.StreamID)
		streamInfos = append(streamInfos, monitor.StreamInfo{StreamID: cam.StreamID, Mode: string(cam.Mode)})
	}

	consumer, err := stream.NewConsumer(&cfg.Kafka, streamIDs)
	if err != nil {
		fmt.Println("Failed to create consumer:", err)
		os.Exit(1)
	}
	producer, err := stream.NewProducer(&cfg.Kafka)
	if err != nil {
		consumer.Close()
		fmt.Println("Failed to create producer:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	go monitor.StartMon(cfg.MonitoringPort, streamInfos, ctx)

	if cfg.Registration.Enabled {
		ip, err := GetOutboundIP()
		if err != nil {
			logger.S().Warnf("failed to get outbound IP, skipping registration: %v", err)
		} else {
			register.RegServerCfg.SetAddress(cfg.Registration.Host, cfg.Registration.Port)
			wg.Add(1)
			go register.SendAliveMessage(ip, cfg.MonitoringPort, ctx, &wg)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logger.S().Info("geo mapper stage running")
loop:
	for {
		select {
		case <-sigCh:
			logger.S().Info("signal received, shutting down")
			break loop
		default:
		}
		raw := consumer.Poll(100)
		if raw == nil {
			continue
		}
		handleMessage(raw, mapper, producer)
	}

	cancel()
	consumer.Close()
	producer.Close()
	wg.Wait()
	fmt.Println("Safely exited")
}

// handleMessage runs one envelope through the transform and publishes the
// result, unless the mapper signals a frame drop.
func handleMessage(raw []byte, mapper *geomapper.GeoMapper, producer *stream.Producer) {
	getTimer := prometheus.NewTimer(monitor.GetDuration)
	defer getTimer.ObserveDuration()

	deserTimer := prometheus.NewTimer(monitor.DeserializeDuration)
	msg, err := sae.Unmarshal(raw)
	deserTimer.ObserveDuration()
	if err != nil {
		logger.S().Warnf("failed to decode envelope, discarding message: %v", err)
		monitor.FramesDropped.WithLabelValues("decode_error").Inc()
		return
	}

	out := mapper.Process(msg)
	if out == nil {
		return
	}

	serTimer := prometheus.NewTimer(monitor.SerializeDuration)
	payload := sae.Marshal(out)
	serTimer.ObserveDuration()

	if err := producer.Publish(out.Frame.SourceID, payload); err != nil {
		logger.S().Errorf("failed to publish transformed message: %v", err)
	}
}

package main

import (
	"strings"

	"bargain/internal/client"
)

type ClientCmd struct {
	Server string `kong:"default='ws://localhost:5000/ws',help='WebSocket server URL'"`
	Group  int    `kong:"default='1',help='Experimental group to join (1-4)'"`
	Debug  bool   `kong:"help='Write debug logs to bargain-client.log'"`
}

func (c *ClientCmd) Run() error {
	return client.Run(client.Config{
		Server: strings.TrimSpace(c.Server),
		Group:  c.Group,
		Debug:  c.Debug,
	})
}

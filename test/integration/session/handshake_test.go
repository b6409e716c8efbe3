// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

//go:build integration

package session_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/oklog/ulid/v2"

	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/discovery"
	"github.com/maroonlab/maroon/internal/listserver"
	"github.com/maroonlab/maroon/internal/portmap"
	"github.com/maroonlab/maroon/internal/session"
	"github.com/maroonlab/maroon/internal/wire"
)

var _ = Describe("Session establishment", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("hosting with a local player", func() {
		It("admits and spawns the host's own player", func() {
			host := newNode(nodeConfig{pose: core.Pose{
				Position: wire.Vector3{X: 1, Y: 2, Z: 0.5},
				Rotation: wire.Identity,
			}})
			Expect(host.manager.StartHost(ctx)).To(Succeed())
			Expect(host.manager.Role()).To(Equal(core.RoleHost))

			Eventually(host.players()).Should(HaveLen(1))
			Expect(host.players()()[0].Pose.Position).To(Equal(wire.Vector3{X: 1, Y: 2, Z: 0.5}))
		})
	})

	Describe("remote clients", func() {
		var host *node

		BeforeEach(func() {
			host = newNode(nodeConfig{headless: true})
			Expect(host.manager.StartHost(ctx)).To(Succeed())
		})

		It("spawns an accepted client at the pose it reported", func() {
			pose := core.Pose{
				Position: wire.Vector3{X: -3.25, Z: 7.5},
				Rotation: wire.Quaternion{Y: 0.70710677, W: 0.70710677},
			}
			client := newNode(nodeConfig{pose: pose})
			Expect(client.manager.StartClient(ctx, host.url())).To(Succeed())

			Eventually(host.players()).Should(HaveLen(1))
			Expect(host.players()()[0].Pose).To(Equal(pose))
			Expect(client.manager.Role()).To(Equal(core.RoleClientOnly))
		})

		It("rejects wrong credentials and never spawns", func() {
			client := newNode(nodeConfig{password: "wrong"})
			Expect(client.manager.StartClient(ctx, host.url())).To(Succeed())

			Eventually(client.role()).Should(Equal(core.RoleOffline))
			Consistently(host.players(), 300*time.Millisecond).Should(BeEmpty())
			Eventually(func() int { return len(host.manager.Host().Connections()) }).Should(BeZero())
		})

		It("gives every concurrent client its own player", func() {
			const peers = 5
			for i := 0; i < peers; i++ {
				client := newNode(nodeConfig{pose: core.Pose{
					Position: wire.Vector3{X: float32(i)},
					Rotation: wire.Identity,
				}})
				Expect(client.manager.StartClient(ctx, host.url())).To(Succeed())
			}

			Eventually(host.players()).Should(HaveLen(peers))
			seen := map[ulid.ULID]bool{}
			for _, p := range host.players()() {
				seen[p.ID] = true
			}
			Expect(seen).To(HaveLen(peers))
		})

		It("despawns a client that leaves", func() {
			client := newNode(nodeConfig{})
			Expect(client.manager.StartClient(ctx, host.url())).To(Succeed())
			Eventually(host.players()).Should(HaveLen(1))

			Expect(client.manager.StopClient(ctx)).To(Succeed())
			Eventually(host.players()).Should(BeEmpty())
			Expect(client.player.Unregistered()).To(Equal(1))
		})

		It("returns clients to offline when the host stops", func() {
			client := newNode(nodeConfig{})
			Expect(client.manager.StartClient(ctx, host.url())).To(Succeed())
			Eventually(host.players()).Should(HaveLen(1))

			Expect(host.manager.StopHost(ctx)).To(Succeed())
			Eventually(client.role()).Should(Equal(core.RoleOffline))
		})
	})

	Describe("collaborators", func() {
		It("lists the session and marks it reachable once the port is mapped", func() {
			mr := miniredis.NewMiniRedis()
			Expect(mr.Start()).To(Succeed())
			DeferCleanup(mr.Close)

			cfg := listserver.DefaultConfig()
			cfg.URL = "redis://" + mr.Addr()
			registry, err := listserver.New(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(registry.Close)

			mapper := portmap.NewMapper(portmap.StaticGateway{}, portmap.Config{Backoff: 10 * time.Millisecond})
			DeferCleanup(mapper.Close)

			host := newNode(nodeConfig{headless: true, opts: []session.Option{
				session.WithListServer(listserver.NewAnnouncer(registry, nil)),
				session.WithPortMapper(mapper),
			}})
			Expect(host.manager.StartHost(ctx)).To(Succeed())

			Eventually(host.manager.PortMapped).Should(BeTrue())
			Eventually(func() []listserver.Entry {
				entries, err := registry.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				return entries
			}).Should(ContainElement(And(
				HaveField("URL", host.url()),
				HaveField("Reachable", BeTrue()),
			)))

			Expect(host.manager.StopHost(ctx)).To(Succeed())
			Expect(registry.List(ctx)).To(BeEmpty())
		})

		It("advertises the session on the local network", func() {
			seeker, err := discovery.New(discovery.Config{
				ListenAddr: "127.0.0.1:0",
				Interval:   50 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())
			seeker.StartDiscovery()
			DeferCleanup(seeker.Close)

			beacon, err := discovery.New(discovery.Config{
				Name:          "physics-lab",
				ListenAddr:    "127.0.0.1:0",
				BroadcastAddr: seeker.LocalAddr().String(),
				Interval:      50 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(beacon.Close)

			host := newNode(nodeConfig{headless: true, opts: []session.Option{session.WithDiscovery(beacon)}})
			host.manager.Start(ctx)
			Expect(beacon.Discovering()).To(BeTrue())

			Expect(host.manager.StartHost(ctx)).To(Succeed())
			Eventually(seeker.Hosts).Should(ContainElement(HaveField("URL", host.url())))

			client := newNode(nodeConfig{})
			found := seeker.Hosts()[0].URL
			Expect(client.manager.StartClient(ctx, found)).To(Succeed())
			Eventually(host.players()).Should(HaveLen(1))
		})
	})

	Describe("the wire protocol", func() {
		It("speaks the JSON envelope to a bare websocket peer", func() {
			host := newNode(nodeConfig{headless: true})
			Expect(host.manager.StartHost(ctx)).To(Succeed())

			conn, _, err := websocket.DefaultDialer.Dial(host.url(), nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(conn.Close)

			send := func(msg wire.Message) {
				data, err := wire.Encode(msg)
				Expect(err).NotTo(HaveOccurred())
				Expect(conn.WriteMessage(websocket.TextMessage, data)).To(Succeed())
			}

			send(wire.AuthRequest{Username: username, Password: password})
			_, reply, err := conn.ReadMessage()
			Expect(err).NotTo(HaveOccurred())
			Expect(wire.Decode(reply)).To(Equal(wire.Success()))

			send(wire.CharacterSpawn{Position: wire.Vector3{X: 4}, Rotation: wire.Identity})
			Eventually(host.players()).Should(ContainElement(
				HaveField("Pose.Position", wire.Vector3{X: 4}),
			))
		})
	})
})

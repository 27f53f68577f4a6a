// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package docserver

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	authctx "github.com/Perth00/WanderPlan-sub001/internal/auth"
)

// Server bundles the services behind one fiber app.
type Server struct {
	App    *fiber.App
	Auth   *AuthService
	Docs   *Service
	Assets *AssetService
	Hub    *Hub
}

func NewServer(auth *AuthService, docs *Service, assets *AssetService, hub *Hub) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{App: app, Auth: auth, Docs: docs, Assets: assets, Hub: hub}
	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	registerAuthRoutes(s.App.Group("/auth"), s.Auth)

	jwtMiddleware := JWTMiddleware(s.Auth)
	v1 := s.App.Group("/v1")
	registerDocRoutes(v1, s.Docs, jwtMiddleware)
	registerFeedRoutes(v1, s.Hub, jwtMiddleware)
	registerAssetRoutes(v1, s.Assets, jwtMiddleware)
}

func registerAuthRoutes(r fiber.Router, auth *AuthService) {
	r.Post("/register", func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Username string `json:"username"`
			Password string `json:"password"`
			DeviceID string `json:"device_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		tokens, err := auth.Register(c.Context(), req.Email, req.Username, req.Password, req.DeviceID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(tokens)
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			DeviceID string `json:"device_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		tokens, err := auth.Login(c.Context(), req.Email, req.Password, req.DeviceID)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return c.JSON(tokens)
	})
}

// Collection paths arrive as a query parameter because they contain slashes
// ("trips/{id}/activities"); the document id, when needed, rides alongside.
func registerDocRoutes(r fiber.Router, docs *Service, authMiddleware fiber.Handler) {
	r.Post("/docs", authMiddleware, func(c *fiber.Ctx) error {
		path := c.Query("path")
		if path == "" {
			return fiber.NewError(fiber.StatusBadRequest, "path required")
		}
		var data map[string]any
		if err := c.BodyParser(&data); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		id, err := docs.Add(c.Context(), userID(c), path, data)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	})

	r.Put("/docs", authMiddleware, func(c *fiber.Ctx) error {
		path, id := c.Query("path"), c.Query("id")
		if path == "" || id == "" {
			return fiber.NewError(fiber.StatusBadRequest, "path and id required")
		}
		var data map[string]any
		if err := c.BodyParser(&data); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := docs.Set(c.Context(), userID(c), path, id, data); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/docs", authMiddleware, func(c *fiber.Ctx) error {
		path, id := c.Query("path"), c.Query("id")
		if path == "" {
			return fiber.NewError(fiber.StatusBadRequest, "path required")
		}
		if id == "" {
			list, err := docs.List(c.Context(), userID(c), path)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
			if list == nil {
				list = []WireDoc{}
			}
			return c.JSON(list)
		}
		doc, err := docs.Get(c.Context(), userID(c), path, id)
		if errors.Is(err, ErrDocNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "document not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(doc)
	})

	r.Delete("/docs", authMiddleware, func(c *fiber.Ctx) error {
		path, id := c.Query("path"), c.Query("id")
		if path == "" || id == "" {
			return fiber.NewError(fiber.StatusBadRequest, "path and id required")
		}
		if err := docs.Delete(c.Context(), userID(c), path, id); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func registerFeedRoutes(r fiber.Router, hub *Hub, authMiddleware fiber.Handler) {
	r.Get("/feed", authMiddleware, websocket.New(func(c *websocket.Conn) {
		path := c.Query("path")
		uid, _ := c.Locals("user_id").(string)
		if path == "" || uid == "" {
			_ = c.Close()
			return
		}
		client := hub.Register(feedKey(uid, path))
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		<-done
	}))
}

func registerAssetRoutes(r fiber.Router, assets *AssetService, authMiddleware fiber.Handler) {
	r.Post("/assets", authMiddleware, func(c *fiber.Ctx) error {
		name := c.Query("name")
		if name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		body := c.Body()
		if len(body) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "empty body")
		}
		url, err := assets.Store(c.Context(), userID(c), name, append([]byte(nil), body...))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
	})

	r.Get("/assets/:id", func(c *fiber.Ctx) error {
		name, content, err := assets.Load(c.Context(), c.Params("id"))
		if errors.Is(err, ErrAssetNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "asset not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Set(fiber.HeaderContentDisposition, `inline; filename="`+name+`"`)
		return c.Send(content)
	})

	r.Delete("/assets", authMiddleware, func(c *fiber.Ctx) error {
		url := c.Query("url")
		if url == "" {
			return fiber.NewError(fiber.StatusBadRequest, "url required")
		}
		if err := assets.Remove(c.Context(), userID(c), url); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func userID(c *fiber.Ctx) string {
	if uid, ok := authctx.GetUserID(c.UserContext()); ok {
		return uid
	}
	uid, _ := c.Locals("user_id").(string)
	return uid
}

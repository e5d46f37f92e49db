// Package main serves an in-memory Directus stand-in seeded with demo
// users, memes and notifications, for running memebox without a backend.
package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/memebox/internal/directustest"
	"github.com/nhle/memebox/internal/model"
)

const adminRole = "admin"

func main() {
	addr := flag.String("addr", "127.0.0.1:8055", "listen address")
	every := flag.Duration("notify-every", 45*time.Second, "interval between generated notifications (0 disables)")
	flag.Parse()

	gin.SetMode(gin.ReleaseMode)
	log.SetPrefix("[DIRECTUS-MOCK] ")

	backend := directustest.New()
	ada, bob := seed(backend)
	backend.EnableOAuth(ada.ID)

	if *every > 0 {
		go generate(backend, ada, bob, *every)
	}

	log.Printf("listening on http://%s", *addr)
	log.Printf("sign in as ada@example.com / memebox-ada (role %q) or bob@example.com / memebox-bob", adminRole)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
}

func seed(b *directustest.Backend) (ada, bob model.User) {
	ada = b.AddUser(model.User{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", Role: adminRole}, "memebox-ada")
	bob = b.AddUser(model.User{Email: "bob@example.com", FirstName: "Bob"}, "memebox-bob")

	reaction := b.AddItem("tags", map[string]any{"name": "reaction"})
	cats := b.AddItem("tags", map[string]any{"name": "cats"})

	b.AddItem("memes", map[string]any{
		"title": "When the build passes on the first try", "status": "published",
		"views": 120, "likes": 14, "user_created": string(bob.ID),
		"tags": []any{map[string]any{"tags_id": reaction}},
	})
	b.AddItem("memes", map[string]any{
		"title": "Cat reviewing my pull request", "status": "published",
		"views": 87, "likes": 9, "user_created": string(ada.ID),
		"tags": []any{map[string]any{"tags_id": cats}, map[string]any{"tags_id": reaction}},
	})
	b.AddItem("memes", map[string]any{
		"title": "Unfinished thoughts", "status": "draft", "user_created": string(ada.ID),
	})

	b.AddItem("notifications", map[string]any{
		"type": "like", "user": string(ada.ID), "read": false,
		"from_user_id": string(bob.ID), "from_user_name": bob.DisplayName(),
	})
	return ada, bob
}

// generate keeps adding social notifications for ada so polling has
// something to deliver.
func generate(b *directustest.Backend, ada, bob model.User, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	kinds := []model.NotificationType{model.NotificationLike, model.NotificationComment}
	for i := 0; ; i++ {
		<-ticker.C
		id := b.AddItem("notifications", map[string]any{
			"type": string(kinds[i%len(kinds)]), "user": string(ada.ID), "read": false,
			"from_user_id": string(bob.ID), "from_user_name": bob.DisplayName(),
		})
		log.Printf("queued notification %s", id)
	}
}

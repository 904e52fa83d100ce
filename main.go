package main

import (
	"log"
	"os"
	"time"

	"github.com/song-xingzhou/MVEN-Parking/routes"
	"github.com/song-xingzhou/MVEN-Parking/services"
	"github.com/song-xingzhou/MVEN-Parking/storage"
	"github.com/song-xingzhou/MVEN-Parking/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// pendingOrderTTL is how long a Pending order may hold out for payment
// before the system cancels it.
const pendingOrderTTL = 30 * time.Minute

func main() {
	godotenv.Load()
	db := storage.InitializeDB()
	storage.InitializeRedis()

	store := storage.NewParkingStore(db)
	booking := services.NewBooking(store)
	rating := services.NewRating(store)
	locator := services.NewLocator(store)
	routes.UseEngine(booking, rating, locator)

	go expirePendingOrders(booking)

	app := iris.New()
	app.Validator = validator.New()
	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Post("/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)
		user.Get("/profile", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetProfile)
	}

	spaces := app.Party("/api/spaces")
	{
		spaces.Get("/nearby", routes.NearbySpaces)
		spaces.Get("/{id:uint}", routes.GetSpace)
		spaces.Get("/{id:uint}/comments", routes.ListSpaceComments)

		authed := spaces.Party("", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
		authed.Post("/", routes.CreateSpace)
		authed.Get("/mine", routes.ListMySpaces)
		authed.Patch("/{id:uint}/status", routes.UpdateSpaceStatus)
	}

	orders := app.Party("/api/orders", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		orders.Post("/", routes.CreateOrder)
		orders.Get("/", routes.ListMyOrders)
		orders.Get("/{id:uint}", routes.GetOrder)
		orders.Post("/{id:uint}/pay", routes.PayOrder)
		orders.Post("/{id:uint}/start", routes.StartOrder)
		orders.Post("/{id:uint}/complete", routes.CompleteOrder)
		orders.Post("/{id:uint}/cancel", routes.CancelOrder)
		orders.Post("/{id:uint}/comment", routes.CreateOrderComment)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Post("/spaces/{id:uint}/approve", routes.ApproveSpace)
		admin.Post("/orders/{id:uint}/cancel", routes.CancelOrder)
		admin.Post("/orders/{id:uint}/refund", routes.RefundOrder)
		admin.Post("/comments/{id:uint}/moderate", routes.ModerateComment)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	app.Listen(":" + port)
}

// expirePendingOrders cancels stale Pending orders on behalf of the
// system so abandoned checkouts do not pile up.
func expirePendingOrders(booking *services.Booking) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		n, err := booking.CancelExpired(pendingOrderTTL)
		if err != nil {
			log.Println("expire pending orders:", err)
			continue
		}
		if n > 0 {
			log.Printf("cancelled %d expired pending orders", n)
		}
	}
}

// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Services is allocated in ConnectDB and filled in by Startup; the hooks
// receive DBDeps by value, so the pointer is what carries the background
// workers through to BuildHandler and Shutdown.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Services      *Services
}

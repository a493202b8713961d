package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"minipub/activitypub"
	"minipub/db"
	"minipub/domain"
	"minipub/util"
	"minipub/web"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	database, err := db.Open(filepath.Join(conf.Conf.DataDir, "minipub.db"))
	if err != nil {
		log.Fatalln(err)
	}
	defer database.Close()

	keypair, err := util.LoadOrCreateKeypair(conf.Conf.DataDir)
	if err != nil {
		log.Fatalln(err)
	}

	privateKey, err := util.ParsePrivateKey(keypair.Private)
	if err != nil {
		log.Fatalln(err)
	}

	if err := seedSelfActor(database, conf, keypair); err != nil {
		log.Fatalln(err)
	}

	ap := activitypub.NewService(database, conf, privateKey)

	startServing(web.NewRouter(conf, database, ap), conf)
}

// seedSelfActor makes sure the local actor row exists and carries the
// current public key.
func seedSelfActor(database *db.DB, conf *util.AppConfig, keypair *util.RsaKeyPair) error {
	err, _ := database.UpsertActor(&domain.Actor{
		ScreenName:   conf.Conf.Username,
		Domain:       conf.Conf.Domain,
		DisplayName:  conf.Conf.Username,
		PublicKeyPem: keypair.Public,
		ActorURI:     activitypub.ActorIRI(conf.Conf.Domain, conf.Conf.Username),
		InboxURI:     activitypub.InboxIRI(conf.Conf.Domain, conf.Conf.Username),
	})
	return err
}

func startServing(handler http.Handler, conf *util.AppConfig) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler: handler,
	}

	log.Printf("Starting HTTP server on %s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Stopping HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer func() { cancel() }()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalln(err)
	}
}

// One-shot maintenance sweep: archives and deletes expired stories and aged
// activities, then exits. The server runs the same sweep periodically; this
// binary exists for manual runs and cron.
package main

import (
	"context"
	"flag"

	"github.com/ggeejehd-eng/mj36/archive"
	"github.com/ggeejehd-eng/mj36/store"
	"github.com/ggeejehd-eng/mj36/utils/dotenv"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

var disableArchive = flag.Bool("disable_archive", false, "discard sweep victims instead of archiving to postgres")

func main() {
	flag.Parse()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	remote := store.NewRedisStore(store.DefaultOpTimeout)
	if !remote.Ready() {
		Logger.Log.Fatal("redis not reachable, nothing to sweep")
	}
	defer remote.Close()

	var sink store.ArchiveSink = archive.NopSink{}
	if !*disableArchive {
		archiveSink, err := archive.NewSink()
		if err != nil {
			Logger.Log.Fatal("cannot connect to archive database: ", err)
		}
		defer archiveSink.Close()
		sink = archiveSink
	}

	adapter := store.NewAdapter(remote)
	stories, activities := adapter.CleanupOldData(context.Background(), sink)
	Logger.Log.Infof("sweep removed %d stories and %d activities", stories, activities)
}

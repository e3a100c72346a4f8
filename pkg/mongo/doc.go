// Package mongo provides the MongoDB binding for pkg/kv on top of the official
// mongo-driver v2.
//
// New connects and pings with retries using Config (MONGODB_* variables).
// Store keeps one document per kv key:
//
//	{_id: hex(kv.Key.Encode), value: <bytes>, vs: <ObjectID hex>, expires_at: <date>}
//
// Hex ids sort like the encoded keys, so List is an _id range query paged by
// Config.ListPageSize. Commits run in a snapshot transaction with majority
// write concern, which needs a replica set or a sharded cluster. Write
// conflicts and duplicate inserts surface as kv.ErrConflict.
//
// Expiration uses a TTL index (EnsureIndexes). The server removes documents
// roughly once a minute, so reads also filter on expires_at.
//
// # Usage
//
//	client, err := mongo.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := mongo.NewStoreFromConfig(client, cfg)
//	if err := store.EnsureIndexes(ctx); err != nil {
//	    return err
//	}
package mongo

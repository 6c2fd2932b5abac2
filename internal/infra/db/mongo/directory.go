package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/app/policies"
	domainuser "storefront/internal/domain/user"
)

// Directory reads display profiles from the shared users collection. User ids
// are matched against _id both as strings and, when they are 24 hex digits,
// as ObjectIds; ObjectId keys come back in their hex form.
type Directory struct {
	col *mongo.Collection
}

func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{col: db.Collection(usersCollection)}
}

func (d *Directory) ResolveUsers(ctx context.Context, ids []string) (map[string]domainuser.Profile, error) {
	out := make(map[string]domainuser.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1})
	cur, err := d.col.Find(ctx, bson.M{"_id": bson.M{"$in": userKeys(ids)}}, opts)
	if err != nil {
		return nil, translateError(err)
	}
	var docs []struct {
		ID    bson.RawValue `bson:"_id"`
		Name  string        `bson:"name"`
		Email string        `bson:"email"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateError(err)
	}
	for _, doc := range docs {
		id, ok := userID(doc.ID)
		if !ok {
			continue
		}
		out[id] = domainuser.Profile{ID: id, Name: doc.Name, Email: doc.Email}
	}
	return out, nil
}

func userKeys(ids []string) []any {
	keys := make([]any, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			keys = append(keys, oid)
		}
	}
	return keys
}

func userID(raw bson.RawValue) (string, bool) {
	if s, ok := raw.StringValueOK(); ok {
		return s, true
	}
	if oid, ok := raw.ObjectIDOK(); ok {
		return oid.Hex(), true
	}
	return "", false
}

var _ policies.ParticipantDirectory = (*Directory)(nil)

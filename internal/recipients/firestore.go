// Package recipients resolves a vehicle key to the push tokens of its
// registered owners. Registrations live in a Firestore collection; a
// vehicle is matched either by its primary plate field or by the secondary
// ("phụ") plate nested field.
package recipients

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
)

const (
	// DefaultCollection is the registration collection name.
	DefaultCollection = "thongtindangky"

	primaryPlateField   = "biensoxe"
	secondaryPlateField = "biensophu.bienSo"
)

// registration is the subset of a registration document the resolver reads.
type registration struct {
	Email     string   `firestore:"email"`
	FCMTokens []string `firestore:"fcmTokens"`
}

type FirestoreResolver struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreResolver(client *firestore.Client, collection string) *FirestoreResolver {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreResolver{client: client, collection: collection}
}

// ByPlate returns the tokens of every registration whose primary plate
// matches key. An empty result is not an error.
func (r *FirestoreResolver) ByPlate(ctx context.Context, key domain.VehicleKey) ([]string, error) {
	return r.query(ctx, primaryPlateField, key)
}

// BySecondaryPlate matches on the nested secondary plate field.
func (r *FirestoreResolver) BySecondaryPlate(ctx context.Context, key domain.VehicleKey) ([]string, error) {
	return r.query(ctx, secondaryPlateField, key)
}

func (r *FirestoreResolver) query(ctx context.Context, field string, key domain.VehicleKey) ([]string, error) {
	iter := r.client.Collection(r.collection).
		Where(field, "==", string(key)).
		Documents(ctx)
	defer iter.Stop()

	var tokens []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s by %s: %w", r.collection, field, err)
		}

		var reg registration
		if err := doc.DataTo(&reg); err != nil {
			return nil, fmt.Errorf("decode registration %s: %w", doc.Ref.ID, err)
		}
		tokens = append(tokens, reg.FCMTokens...)
	}
	return tokens, nil
}

package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/scorpius/internal/db"
	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "scorpius:emb_cache:abc")).
		Return(mock.Result(mock.RedisString("\x01\x02")))

	s := NewStoreForTest(c)
	got, err := s.Get(context.Background(), "scorpius:emb_cache:abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "\x01\x02" {
		t.Errorf("Get() = %q", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Set(context.Background(), "k", []byte("v"))
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSet {
		t.Fatalf("expected *db.Error with op SET, got %v", err)
	}
}

func TestDel_MultipleKeys(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "a", "b")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Del(context.Background(), "a", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDel_NoKeys(t *testing.T) {
	s := NewStoreForTest(nil)
	if err := s.Del(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIncrBy_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCRBY", "scorpius:budget:openai:daily:2026-10-19", "120")).
		Return(mock.Result(mock.RedisInt64(120)))

	s := NewStoreForTest(c)
	if err := s.IncrBy(context.Background(), "scorpius:budget:openai:daily:2026-10-19", 120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpire_WithNX(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "k", "172800", "NX")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Expire(context.Background(), "k", 48*time.Hour, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- hash.go tests ---

func TestHSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HSET", "key", "secteur", "État")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.HSet(context.Background(), "key", map[string]string{"secteur": "État"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.ErrorResult(context.DeadlineExceeded),
		})

	s := NewStoreForTest(c)
	errs := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f1": "v1"}},
		{Key: "k2", Fields: map[string]string{"f2": "v2"}},
	})
	if len(errs) != 2 {
		t.Fatalf("len(errs) = %d, want 2", len(errs))
	}
	if errs[0] != nil {
		t.Errorf("errs[0] = %v, want nil", errs[0])
	}
	if errs[1] == nil || !strings.Contains(errs[1].Error(), "k2") {
		t.Errorf("errs[1] = %v, want error naming k2", errs[1])
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	s := NewStoreForTest(nil)
	if errs := s.HSetMulti(context.Background(), nil); errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestHGetAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "meta")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("description"),
			mock.RedisString("Appels d'offres passés"),
		)))

	s := NewStoreForTest(c)
	m, err := s.HGetAll(context.Background(), "meta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["description"] != "Appels d'offres passés" {
		t.Errorf("HGetAll() = %v", m)
	}
}

func TestExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXISTS", "k")).
		Return(mock.Result(mock.RedisInt64(0)))

	s := NewStoreForTest(c)
	ok, err := s.Exists(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false")
	}
}

func TestScan_MultiPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("SCAN", "0", "MATCH", "p:*", "COUNT", "500")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisString("7"),
				mock.RedisArray(mock.RedisString("p:1")),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("SCAN", "7", "MATCH", "p:*", "COUNT", "500")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisString("0"),
				mock.RedisArray(mock.RedisString("p:2"), mock.RedisString("p:3")),
			))),
	)

	s := NewStoreForTest(c)
	keys, err := s.Scan(context.Background(), "p:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("keys = %v", keys)
	}
}

// --- index.go tests ---

func TestCreateIndex_Args(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var got []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			got = cmd
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	def, err := db.NewIndex("scorpius:idx:reglementaire").
		Prefix("scorpius:reglementaire:").
		MultiTag("domaine_technique", ",").
		VectorHNSW("vector", 1536, db.DistanceCosine, 0, 0).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	s := NewStoreForTest(c)
	if err := s.CreateIndex(context.Background(), def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "FT.CREATE scorpius:idx:reglementaire ON HASH PREFIX 1 scorpius:reglementaire: SCHEMA " +
		"domaine_technique TAG SEPARATOR , " +
		"vector VECTOR HNSW 6 TYPE FLOAT32 DIM 1536 DISTANCE_METRIC COSINE"
	if strings.Join(got, " ") != want {
		t.Errorf("command =\n%s\nwant\n%s", strings.Join(got, " "), want)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	def := &db.IndexDefinition{Name: "idx", Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}}}
	if err := s.CreateIndex(context.Background(), def); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "idx"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "present")).
			Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("present")))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "absent")).
			Return(mock.Result(mock.RedisError("absent: no such index"))),
	)

	s := NewStoreForTest(c)
	if ok, err := s.IndexExists(context.Background(), "present"); err != nil || !ok {
		t.Errorf("present: ok=%v err=%v", ok, err)
	}
	if ok, err := s.IndexExists(context.Background(), "absent"); err != nil || ok {
		t.Errorf("absent: ok=%v err=%v", ok, err)
	}
}

func TestListIndexes(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT._LIST")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("scorpius:idx:historique_ao"),
			mock.RedisString("other"),
		)))

	s := NewStoreForTest(c)
	names, err := s.ListIndexes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "scorpius:idx:historique_ao" {
		t.Errorf("names = %v", names)
	}
}

func TestIndexDocCount(t *testing.T) {
	tests := []struct {
		name  string
		value rueidis.RedisMessage
		want  int
	}{
		{"bulk string", mock.RedisString("42"), 42},
		{"integer", mock.RedisInt64(7), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)

			c.EXPECT().
				Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
				Return(mock.Result(mock.RedisArray(
					mock.RedisString("index_name"), mock.RedisString("idx"),
					mock.RedisString("num_docs"), tt.value,
				)))

			s := NewStoreForTest(c)
			n, err := s.IndexDocCount(context.Background(), "idx")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != tt.want {
				t.Errorf("IndexDocCount() = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestIndexDocCount_Missing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
		Return(mock.Result(mock.RedisError("Unknown index name")))

	s := NewStoreForTest(c)
	if _, err := s.IndexDocCount(context.Background(), "idx"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestBuildFieldArgs_Errors(t *testing.T) {
	if _, err := buildFieldArgs(&db.IndexField{Type: db.IndexFieldTag}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "v", Type: db.IndexFieldVector}); err == nil {
		t.Error("expected error for zero DIM")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "x", Type: db.IndexFieldType(99)}); err == nil {
		t.Error("expected error for unknown type")
	}
}

// --- search.go tests ---

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var got []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			got = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("scorpius:historique_ao:a"),
			mock.RedisArray(
				mock.RedisString("content"), mock.RedisString("MAPA mairie"),
				mock.RedisString("__vector_score"), mock.RedisString("0.12"),
			),
			mock.RedisString("scorpius:historique_ao:b"),
			mock.RedisArray(
				mock.RedisString("content"), mock.RedisString("Appel ouvert"),
				mock.RedisString("__vector_score"), mock.RedisString("0.4"),
			),
		)))

	sector, _ := filter.NewMatch("secteur", "Territorial")
	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "scorpius:idx:historique_ao",
		Filters:      filter.All(sector),
		Vector:       []float32{0.1, 0.2},
		K:            10,
		ReturnFields: []string{"content", "metadata"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || len(res.Entries) != 2 {
		t.Fatalf("result = %+v", res)
	}
	first := res.Entries[0]
	if first.Key != "scorpius:historique_ao:a" || math.Abs(first.Distance-0.12) > 1e-9 {
		t.Errorf("first entry = %+v", first)
	}
	if _, ok := first.Fields["__vector_score"]; ok {
		t.Error("score field must be stripped from Fields")
	}
	if first.Fields["content"] != "MAPA mairie" {
		t.Errorf("content = %q", first.Fields["content"])
	}

	if got[2] != "(@secteur:{Territorial})=>[KNN 10 @vector $BLOB AS __vector_score]" {
		t.Errorf("query = %q", got[2])
	}
	joined := strings.Join(got, " ")
	for _, part := range []string{"RETURN 3 content metadata __vector_score", "SORTBY __vector_score ASC", "LIMIT 0 10", "DIALECT 2"} {
		if !strings.Contains(joined, part) {
			t.Errorf("command missing %q: %s", part, joined)
		}
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && strings.HasPrefix(cmd[2], "*=>")
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(res.Entries))
	}
}

func TestSearchKNN_IndexMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisError("idx: no such index")))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 1})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchKNN_TransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 1})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSearch {
		t.Fatalf("expected *db.Error with op FT.SEARCH, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	tests := []struct {
		name string
		q    *db.KNNQuery
	}{
		{"no index", &db.KNNQuery{Vector: []float32{1}, K: 1}},
		{"no vector", &db.KNNQuery{IndexName: "idx", K: 1}},
		{"zero k", &db.KNNQuery{IndexName: "idx", Vector: []float32{1}}},
	}
	for _, tt := range tests {
		if _, err := s.SearchKNN(ctx, tt.q); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestBuildFilter(t *testing.T) {
	sector, _ := filter.NewMatch("secteur", "Éducation")
	domains, _ := filter.NewAnyOf("domaine_technique", []string{"Data/IA", "Cybersécurité"})
	kind, _ := filter.NewMatch("type_ao", "Partenariat d'innovation")
	r, _ := filter.NewRangeFilter(nil, floatPtr(25000), floatPtr(100000), nil)
	amount, _ := filter.NewRange("montant", r)
	org, _ := filter.NewMatch("organisme", "CHU Nantes")
	mapa, _ := filter.NewMatch("type_ao", "MAPA")
	ouvert, _ := filter.NewMatch("type_ao", "Ouvert")

	tests := []struct {
		name string
		expr filter.Expression
		want string
	}{
		{"empty", filter.Expression{}, ""},
		{"tag", filter.All(sector), "@secteur:{Éducation}"},
		{"any of", filter.All(domains), `@domaine_technique:{Data\/IA | Cybersécurité}`},
		{"apostrophe and spaces", filter.All(kind), `@type_ao:{Partenariat\ d\'innovation}`},
		{"range", filter.All(amount), "@montant:[25000 (100000]"},
		{"must not", mustExpr(t, nil, nil, []filter.Condition{org}), `-@organisme:{CHU\ Nantes}`},
		{"should", mustExpr(t, nil, []filter.Condition{mapa, ouvert}, nil), "(@type_ao:{MAPA} | @type_ao:{Ouvert})"},
		{
			"combined",
			mustExpr(t, []filter.Condition{sector}, []filter.Condition{mapa}, []filter.Condition{org}),
			`@secteur:{Éducation} (@type_ao:{MAPA}) -@organisme:{CHU\ Nantes}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildFilter(tt.expr); got != tt.want {
				t.Errorf("buildFilter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildNumericFilter_OpenBounds(t *testing.T) {
	gt, _ := filter.NewRangeFilter(floatPtr(5e6), nil, nil, nil)
	if got := buildNumericFilter("montant", gt); got != "@montant:[(5e+06 +inf]" {
		t.Errorf("gt only = %q", got)
	}
	lte, _ := filter.NewRangeFilter(nil, nil, nil, floatPtr(500))
	if got := buildNumericFilter("document_length", lte); got != "@document_length:[-inf 500]" {
		t.Errorf("lte only = %q", got)
	}
}

func TestVectorToBytes(t *testing.T) {
	b := []byte(vectorToBytes([]float32{1.5, -2}))
	if len(b) != 8 {
		t.Fatalf("len = %d, want 8", len(b))
	}
	if math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])) != 1.5 {
		t.Error("first float mismatch")
	}
	if math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])) != -2 {
		t.Error("second float mismatch")
	}
}

func floatPtr(f float64) *float64 { return &f }

func mustExpr(t *testing.T, must, should, mustNot []filter.Condition) filter.Expression {
	t.Helper()
	e, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}
	return e
}

func TestListEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SCAN", "0", "MATCH", "scorpius:emb_cache:*", "COUNT", "500")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("0"),
			mock.RedisArray(mock.RedisString("scorpius:emb_cache:a"), mock.RedisString("scorpius:emb_cache:b")),
		)))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(128)),
			mock.Result(mock.RedisInt64(0)),
		})

	s := NewStoreForTest(c)
	entries, err := s.ListEntries(context.Background(), "scorpius:emb_cache:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "scorpius:emb_cache:a" || entries[0].Size != 128 {
		t.Errorf("entries = %+v", entries)
	}
}

package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/playrec/core"
)

// fixture 构造一个小数据集：
//
//	alice: g1(100,10) g2(50,0) g3(50,5)
//	bob:   g1(10,0) g4(300,0)
//	carol: 无物品
func fixture() *MemoryStore {
	m := NewMemoryStore()
	m.AddGame(Game{ItemID: "g1", Name: "Portal", RawVector: VectorLiteral(1, 0)})
	m.AddGame(Game{ItemID: "g2", Name: "Half-Life", RawVector: "[0,1]"})
	m.AddGame(Game{ItemID: "g3", Name: "Dota", RawVector: []float64{1, 1}})
	m.AddGame(Game{ItemID: "g4", Name: "Quake", RawVector: nil})
	m.AddGame(Game{ItemID: "g5", Name: "Unplayed", RawVector: "{0.5,0.5}"})
	m.AddPlay(core.PlayRecord{UserID: "alice", ItemID: "g1", PlaytimeForever: 100, Playtime2Weeks: 10})
	m.AddPlay(core.PlayRecord{UserID: "alice", ItemID: "g2", PlaytimeForever: 50})
	m.AddPlay(core.PlayRecord{UserID: "alice", ItemID: "g3", PlaytimeForever: 50, Playtime2Weeks: 5})
	m.AddPlay(core.PlayRecord{UserID: "bob", ItemID: "g1", PlaytimeForever: 10})
	m.AddPlay(core.PlayRecord{UserID: "bob", ItemID: "g4", PlaytimeForever: 300})
	m.AddUser("carol")
	return m
}

func ids(rows []core.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ItemID
	}
	return out
}

func TestMemoryStore_TopItemsByPlaytime(t *testing.T) {
	ctx := context.Background()
	m := fixture()

	tests := []struct {
		name  string
		user  string
		k     int
		order core.Order
		want  []string
	}{
		{"playtime", "alice", 2, core.OrderPlaytime, []string{"g1", "g3"}},
		{"all", "alice", 10, core.OrderPlaytime, []string{"g1", "g3", "g2"}},
		{"combined", "bob", 1, core.OrderCombined, []string{"g4"}},
		{"popularity", "alice", 1, core.OrderPopularity, []string{"g1"}},
		{"k zero", "alice", 0, core.OrderPlaytime, []string{}},
		{"no items", "carol", 5, core.OrderPlaytime, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := m.TopItemsByPlaytime(ctx, tt.user, tt.k, tt.order)
			if err != nil {
				t.Fatalf("TopItemsByPlaytime 失败: %v", err)
			}
			if got := ids(rows); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
		})
	}
}

func TestMemoryStore_UserItemsCarryGlobalUserCount(t *testing.T) {
	rows, err := fixture().UserItems(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("期望 3 个物品，实际 %d", len(rows))
	}
	if rows[0].ItemID != "g1" || rows[0].UserCount != 2 {
		t.Errorf("g1 应被 2 个用户拥有，实际 %+v", rows[0])
	}
	if rows[0].PlaytimeForever != 100 {
		t.Errorf("游玩时长应为该用户自己的，实际 %d", rows[0].PlaytimeForever)
	}
}

func TestMemoryStore_HasUser(t *testing.T) {
	ctx := context.Background()
	m := fixture()
	for user, want := range map[string]bool{"alice": true, "carol": true, "dave": false} {
		got, err := m.HasUser(ctx, user)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("HasUser(%s) = %v，期望 %v", user, got, want)
		}
	}
	users, _ := m.UserIDs(ctx)
	if !reflect.DeepEqual(users, []string{"alice", "bob", "carol"}) {
		t.Errorf("UserIDs = %v", users)
	}
}

func TestMemoryStore_Catalog(t *testing.T) {
	ctx := context.Background()
	m := fixture()

	all, err := m.AllItemVectors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(all); !reflect.DeepEqual(got, []string{"g1", "g2", "g3", "g4", "g5"}) {
		t.Errorf("AllItemVectors = %v", got)
	}
	if all[0].PlaytimeForever != 110 || all[0].UserCount != 2 {
		t.Errorf("g1 全局聚合错误: %+v", all[0])
	}
	if all[4].UserCount != 0 {
		t.Errorf("未被游玩的物品用户数应为 0: %+v", all[4])
	}

	byID, _ := m.ItemsByIDs(ctx, []string{"g5", "g2", "missing"})
	if got := ids(byID); !reflect.DeepEqual(got, []string{"g2", "g5"}) {
		t.Errorf("ItemsByIDs = %v", got)
	}

	cohort, _ := m.CohortItems(ctx, []string{"bob"})
	if got := ids(cohort); !reflect.DeepEqual(got, []string{"g1", "g4"}) {
		t.Errorf("CohortItems = %v", got)
	}
	if cohort[0].PlaytimeForever != 10 || cohort[0].UserCount != 1 {
		t.Errorf("cohort 聚合只应统计 bob: %+v", cohort[0])
	}
}

func TestMemoryStore_ItemOrder(t *testing.T) {
	order, err := fixture().ItemOrder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"g1", "g2", "g3", "g4"}) {
		t.Errorf("ItemOrder = %v", order)
	}
}

func TestMemoryStore_NeighborUserIDs(t *testing.T) {
	ctx := context.Background()
	m := fixture()

	if _, err := m.NeighborUserIDs(ctx, "alice", 2); !core.IsInsufficientData(err) {
		t.Fatalf("没有比例向量时应返回 INSUFFICIENT_DATA，实际 %v", err)
	}

	err := m.UpsertDerivedVectors(ctx, core.DerivedPlayRatio, map[string][]float64{
		"alice": {1, 0, 0},
		"bob":   {0.9, 0.1, 0},
		"carol": {0, 0, 1},
		"dave":  {0.9, 0.1, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.NeighborUserIDs(ctx, "alice", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"bob", "dave"}) {
		t.Errorf("NeighborUserIDs = %v", got)
	}

	vec, err := m.DerivedVector(ctx, core.DerivedPlayRatio, "carol")
	if err != nil || !reflect.DeepEqual(vec, []float64{0, 0, 1}) {
		t.Errorf("DerivedVector = %v, %v", vec, err)
	}
	if _, err := m.DerivedVector(ctx, core.DerivedCentroid, "carol"); !core.IsStoreNotFound(err) {
		t.Errorf("不存在的派生向量应返回 NOT_FOUND，实际 %v", err)
	}
	users, _ := m.RatioUserIDs(ctx)
	if len(users) != 4 {
		t.Errorf("RatioUserIDs = %v", users)
	}
}

func TestMemoryStore_AddPlayRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	m := fixture()
	tests := []struct {
		name string
		rec  core.PlayRecord
	}{
		{"negative forever", core.PlayRecord{UserID: "bob", ItemID: "g2", PlaytimeForever: -100}},
		{"negative 2weeks", core.PlayRecord{UserID: "bob", ItemID: "g2", PlaytimeForever: 5, Playtime2Weeks: -1}},
		{"missing user", core.PlayRecord{ItemID: "g2", PlaytimeForever: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.AddPlay(tt.rec); !core.IsInvalidInput(err) {
				t.Errorf("期望 INVALID_INPUT，实际 %v", err)
			}
		})
	}

	recs, err := m.PlayRecords(ctx, "bob")
	if err != nil || len(recs) != 2 {
		t.Errorf("非法记录不应写入: %v %v", recs, err)
	}
	if err := m.AddPlay(core.PlayRecord{UserID: "bob", ItemID: "g2"}); err != nil {
		t.Errorf("零时长是合法记录: %v", err)
	}
}

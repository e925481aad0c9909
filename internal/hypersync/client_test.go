package hypersync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chainscan/internal/scan"
)

func testFilter(t *testing.T) scan.Filter {
	t.Helper()
	f, err := scan.NewFilter(
		[]string{"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
		[]string{"Transfer(address,address,uint256)"},
	)
	require.NoError(t, err)
	return f
}

func TestClientLatestBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/height", r.URL.Path)
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(HeightResponse{Height: 19000000})
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, BearerToken: "sekrit", ChainID: 1}, nil)
	require.NoError(t, err)

	height, err := client.LatestBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(19000000), height)
}

func TestClientFetchLogsPaginates(t *testing.T) {
	var queries []Query
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)

		var query Query
		require.NoError(t, json.NewDecoder(r.Body).Decode(&query))
		queries = append(queries, query)

		// Two pages: [100,150) then [150,201).
		switch query.FromBlock {
		case 100:
			json.NewEncoder(w).Encode(QueryResponse{
				Data: []DataBatch{{
					Logs: []Log{
						{BlockNumber: 120, BlockHash: "0xb1", TransactionHash: "0xt1", LogIndex: 0, Address: "0xa", Topics: []string{"0xtop"}, Data: "0x01"},
						{BlockNumber: 149, BlockHash: "0xb2", TransactionHash: "0xt2", LogIndex: 3, Address: "0xa", Topics: []string{"0xtop"}, Data: "0x02"},
					},
					Blocks: []Block{
						{Number: 120, Timestamp: "0x65b0c000"},
						{Number: 149, Timestamp: "1706000000"},
					},
				}},
				NextBlock: 150,
			})
		case 150:
			json.NewEncoder(w).Encode(QueryResponse{
				Data: []DataBatch{{
					Logs: []Log{
						{BlockNumber: 200, BlockHash: "0xb3", TransactionHash: "0xt3", LogIndex: 1, Address: "0xa", Topics: []string{"0xtop"}, Data: "0x03"},
					},
					Blocks: []Block{{Number: 200, Timestamp: "1706001000"}},
				}},
				NextBlock: 201,
			})
		default:
			t.Errorf("unexpected from_block %d", query.FromBlock)
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, ChainID: 1}, nil)
	require.NoError(t, err)

	records, err := client.FetchLogs(context.Background(), 100, 200, testFilter(t))
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, uint64(120), records[0].BlockNumber)
	require.Equal(t, uint64(0x65b0c000), records[0].Timestamp)
	require.Equal(t, uint64(1706000000), records[1].Timestamp)
	require.Equal(t, uint64(200), records[2].BlockNumber)
	require.Equal(t, uint64(1), records[2].ChainID)

	// Same ingestion timestamp format as the RPC source.
	for _, record := range records {
		_, err := time.Parse(time.RFC3339Nano, record.IngestedAt)
		require.NoError(t, err)
	}

	// Both pages asked for the same exclusive upper bound.
	require.Len(t, queries, 2)
	require.Equal(t, uint64(201), queries[0].ToBlock)
	require.Equal(t, uint64(201), queries[1].ToBlock)

	// The filter travelled on the wire.
	require.Len(t, queries[0].Logs, 1)
	require.Len(t, queries[0].Logs[0].Address, 1)
	require.Len(t, queries[0].Logs[0].Topics, 1)
	require.Len(t, queries[0].Logs[0].Topics[0], 1)
}

func TestClientFetchLogsStalledServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(QueryResponse{NextBlock: 100})
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, ChainID: 1}, nil)
	require.NoError(t, err)

	_, err = client.FetchLogs(context.Background(), 100, 200, testFilter(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "next_block")
}

func TestClientFetchLogsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "query too large", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, ChainID: 1}, nil)
	require.NoError(t, err)

	_, err = client.FetchLogs(context.Background(), 1, 2, testFilter(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 400")
	require.Contains(t, err.Error(), "query too large")
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
}

package porter

import (
	"context"
	"fmt"

	"github.com/porterhq/porter/pkg/onebot"
)

// call performs one OneBot API round trip and folds non-OK statuses into the
// error so callers only deal with a single failure path.
func (br *Bridge) call(ctx context.Context, endpoint onebot.Endpoint, req *onebot.Request) (*onebot.Response, error) {
	resp, err := br.ob.Call(ctx, endpoint, req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", req.Action, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("failed to %s, retcode: %d", req.Action, resp.Retcode)
	}
	return resp, nil
}

func callTyped[T any](ctx context.Context, br *Bridge, endpoint onebot.Endpoint, req *onebot.Request) (*T, error) {
	resp, err := br.call(ctx, endpoint, req)
	if err != nil {
		return nil, err
	}
	data, err := onebot.DecodeData[T](resp)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", req.Action, err)
	}
	return data, nil
}

func (br *Bridge) getStrangerInfo(ctx context.Context, endpoint onebot.Endpoint, userID onebot.ID, noCache bool) (*onebot.UserInfo, error) {
	return callTyped[onebot.UserInfo](ctx, br, endpoint, onebot.GetStrangerInfo(userID, noCache))
}

func (br *Bridge) getGroupInfo(ctx context.Context, endpoint onebot.Endpoint, groupID onebot.ID, noCache bool) (*onebot.GroupInfo, error) {
	return callTyped[onebot.GroupInfo](ctx, br, endpoint, onebot.GetGroupInfo(groupID, noCache))
}

func (br *Bridge) getFriendList(ctx context.Context, endpoint onebot.Endpoint) ([]onebot.UserInfo, error) {
	friends, err := callTyped[[]onebot.UserInfo](ctx, br, endpoint, onebot.GetFriendList())
	if err != nil {
		return nil, err
	}
	return *friends, nil
}

func (br *Bridge) getGroupList(ctx context.Context, endpoint onebot.Endpoint) ([]onebot.GroupInfo, error) {
	groups, err := callTyped[[]onebot.GroupInfo](ctx, br, endpoint, onebot.GetGroupList())
	if err != nil {
		return nil, err
	}
	return *groups, nil
}

func (br *Bridge) getGroupMemberInfo(ctx context.Context, endpoint onebot.Endpoint, groupID, userID onebot.ID, noCache bool) (*onebot.MemberInfo, error) {
	return callTyped[onebot.MemberInfo](ctx, br, endpoint, onebot.GetGroupMemberInfo(groupID, userID, noCache))
}

func (br *Bridge) getRecord(ctx context.Context, endpoint onebot.Endpoint, file, outFormat string) (*onebot.FileInfo, error) {
	return callTyped[onebot.FileInfo](ctx, br, endpoint, onebot.GetRecord(file, outFormat))
}

func (br *Bridge) getImage(ctx context.Context, endpoint onebot.Endpoint, file, fileID, emojiID string) (*onebot.FileInfo, error) {
	return callTyped[onebot.FileInfo](ctx, br, endpoint, onebot.GetImage(file, fileID, emojiID))
}

func (br *Bridge) getFile(ctx context.Context, endpoint onebot.Endpoint, file, fileID string) (*onebot.FileInfo, error) {
	return callTyped[onebot.FileInfo](ctx, br, endpoint, onebot.GetFile(file, fileID))
}

// sendRemoteMsg delivers a converted message to an endpoint and returns the
// remote message id assigned to it.
func (br *Bridge) sendRemoteMsg(ctx context.Context, endpoint onebot.Endpoint, params *onebot.SendMsgParams) (onebot.ID, error) {
	data, err := callTyped[onebot.MessageIDData](ctx, br, endpoint, onebot.SendMsg(params))
	if err != nil {
		return "", err
	}
	return data.MessageID, nil
}

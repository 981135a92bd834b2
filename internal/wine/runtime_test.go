package wine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeRuntime(t *testing.T, dir, name string) {
	t.Helper()
	bin := filepath.Join(dir, name, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "wine"), []byte("#!/bin/sh\n"), 0o755))
}

func noPath(name string) (string, error) { return "", errors.New("not found: " + name) }

func TestLocate_PrefersRequestedThenNewestLocal(t *testing.T) {
	dir := t.TempDir()
	fakeRuntime(t, dir, "lutris-6.21-x86_64")
	fakeRuntime(t, dir, "lutris-7.2-x86_64")
	fakeRuntime(t, dir, "lutris-7.10-x86_64")
	fakeRuntime(t, dir, "custom")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "broken", "bin"), 0o755))

	l := Locator{RuntimesDir: dir, LookPath: noPath}

	rt, err := l.Locate("")
	require.NoError(t, err)
	require.Equal(t, "lutris-7.10-x86_64", rt.Version)
	require.Equal(t, "local", rt.Source)

	rt, err = l.Locate("lutris-6.21-x86_64")
	require.NoError(t, err)
	require.Equal(t, "lutris-6.21-x86_64", rt.Version)

	rt, err = l.Locate("7.2")
	require.NoError(t, err)
	require.Equal(t, "lutris-7.2-x86_64", rt.Version)
	require.Equal(t, filepath.Join(dir, "lutris-7.2-x86_64", "bin", "wineserver"), rt.Wineserver)

	_, err = l.Locate("9.0")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocate_FallsBackToPath(t *testing.T) {
	l := Locator{RuntimesDir: filepath.Join(t.TempDir(), "none"), LookPath: func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}}
	rt, err := l.Locate("")
	require.NoError(t, err)
	require.Equal(t, Runtime{Wine: "/usr/bin/wine", Wineserver: "/usr/bin/wineserver", Winetricks: "/usr/bin/winetricks", Source: "path"}, rt)

	_, err = Locator{LookPath: noPath}.Locate("")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSpecs(t *testing.T) {
	rt := Runtime{Wine: "/w/wine", Wineserver: "/w/wineserver"}

	s := rt.Exec("/p", "setup.exe", "/S")
	require.Equal(t, []string{"/w/wine", "setup.exe", "/S"}, s.Argv)
	require.Contains(t, s.Env, "WINEPREFIX=/p")

	require.Equal(t, []string{"/w/wineserver", "-k"}, rt.Kill("/p").Argv)
	require.Equal(t, []string{"/w/wine", "wineboot", "-i"}, rt.CreatePrefix("/p").Argv)
	require.Equal(t, []string{"/w/wine", "regedit", "/S", "/tmp/x.reg"}, rt.Regedit("/p", "/tmp/x.reg").Argv)

	_, err := rt.WinetricksSpec("/p", "d3dx9")
	require.Error(t, err)
	rt.Winetricks = "/w/winetricks"
	s, err = rt.WinetricksSpec("/p", "d3dx9 vcrun2008")
	require.NoError(t, err)
	require.Equal(t, []string{"/w/winetricks", "-q", "d3dx9", "vcrun2008"}, s.Argv)
	require.Contains(t, s.Env, "WINE=/w/wine")
}

func TestRegFile(t *testing.T) {
	got := string(RegFile(`HKEY_CURRENT_USER\Software\Wine\Direct3D`, "renderer", `gl "fast"`))
	want := "Windows Registry Editor Version 5.00\r\n\r\n" +
		"[HKEY_CURRENT_USER\\Software\\Wine\\Direct3D]\r\n" +
		"\"renderer\"=\"gl \\\"fast\\\"\"\r\n"
	require.Equal(t, want, got)
}

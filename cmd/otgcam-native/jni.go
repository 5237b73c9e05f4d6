//go:build android

package main

/*
#include <jni.h>
#include <stdlib.h>

static jstring newString(JNIEnv *env, const char *s) {
	return (*env)->NewStringUTF(env, s);
}

static jbyteArray newByteArray(JNIEnv *env, const void *data, jsize n) {
	jbyteArray arr = (*env)->NewByteArray(env, n);
	if (arr != NULL) {
		(*env)->SetByteArrayRegion(env, arr, 0, n, (const jbyte *)data);
	}
	return arr;
}
*/
import "C"

import "unsafe"

//export JNI_OnLoad
func JNI_OnLoad(vm *C.JavaVM, reserved unsafe.Pointer) C.jint {
	native()
	return C.JNI_VERSION_1_6
}

//export Java_com_example_otgcam_MainActivity_startCamera
func Java_com_example_otgcam_MainActivity_startCamera(env *C.JNIEnv, thiz C.jobject) {
	native().startCamera()
}

//export Java_com_example_otgcam_MainActivity_attachDevice
func Java_com_example_otgcam_MainActivity_attachDevice(env *C.JNIEnv, thiz C.jobject, fd, width, height, fps C.jint) C.jboolean {
	if native().attachDevice(int(fd), int(width), int(height), int(fps)) {
		return C.JNI_TRUE
	}
	return C.JNI_FALSE
}

//export Java_com_example_otgcam_MainActivity_detachDevice
func Java_com_example_otgcam_MainActivity_detachDevice(env *C.JNIEnv, thiz C.jobject) {
	native().detachDevice()
}

//export Java_com_example_otgcam_MainActivity_messages
func Java_com_example_otgcam_MainActivity_messages(env *C.JNIEnv, thiz C.jobject) C.jstring {
	cs := C.CString(native().messages())
	defer C.free(unsafe.Pointer(cs))
	return C.newString(env, cs)
}

//export Java_com_example_otgcam_MainActivity_latestFrame
func Java_com_example_otgcam_MainActivity_latestFrame(env *C.JNIEnv, thiz C.jobject) C.jbyteArray {
	data := native().latestFrame()
	if len(data) == 0 {
		return nil
	}
	return C.newByteArray(env, unsafe.Pointer(&data[0]), C.jsize(len(data)))
}
